package mqtt

import "fmt"

// Publish sends payload to topic. Parameter batches go out unretained;
// slot state uses retained messages so late subscribers see it.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d byte payload exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := await(c.paho.Publish(topic, qos, retained, payload), operationTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// Subscribe registers handler for topic, which may contain wildcards. The
// subscription is replayed after every reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := await(c.paho.Subscribe(topic, qos, c.deliver(handler)), operationTimeout); err != nil {
		c.mu.Lock()
		delete(c.subs, topic)
		c.mu.Unlock()
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

// Unsubscribe drops a subscription. Messages already in flight may still
// reach the handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()

	if err := await(c.paho.Unsubscribe(topic), operationTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnsubscribeFailed, topic, err)
	}
	return nil
}

// Subscriptions returns the number of tracked subscriptions.
func (c *Client) Subscriptions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

func checkTopic(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}
