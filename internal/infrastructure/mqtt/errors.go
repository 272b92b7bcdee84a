package mqtt

import "errors"

var (
	// ErrNotConnected is returned while the broker session is down.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnectionFailed wraps the cause of a failed initial connect.
	ErrConnectionFailed = errors.New("mqtt: connect failed")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned for a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: qos must be 0, 1 or 2")

	ErrInvalidTopic = errors.New("mqtt: empty topic")

	// ErrTimeout is returned when the broker does not acknowledge in time.
	ErrTimeout = errors.New("mqtt: timed out")
)
