package http

import (
	"context"

	"github.com/gobeaver/datafile"
)

func init() {
	datafile.RegisterLocation(datafile.Backend{
		Name:    "http",
		Schemes: []string{"http", "https"},
		Factory: func(context.Context, *datafile.Connection, *datafile.Config) (datafile.Location, error) {
			return New(nil), nil
		},
	})
}
