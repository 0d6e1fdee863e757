package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Runner is a background component owned by the application. Start returns
// once the component is running; Stop blocks until it has finished.
type Runner interface {
	Start(ctx context.Context) error
	Stop()
}
