// Package migrations holds the show library schema. Importing it for side
// effects hands the embedded files to the database package.
package migrations

import (
	"embed"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/database"
)

//go:embed *.sql
var schema embed.FS

func init() {
	database.MigrationsFS = schema
}
