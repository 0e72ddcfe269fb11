package memory

import (
	"context"

	"github.com/gobeaver/datafile"
)

// Shared is the adapter behind the "mem" scheme of every resolver.
var Shared = New()

func init() {
	datafile.RegisterLocation(datafile.Backend{
		Name:    "memory",
		Schemes: []string{"mem"},
		Factory: func(context.Context, *datafile.Connection, *datafile.Config) (datafile.Location, error) {
			return Shared, nil
		},
	})
}
