package contracts

import "github.com/julienschmidt/httprouter"

// Handler is a service's HTTP surface. pkg/app mounts it behind the full
// middleware stack.
type Handler interface {
	RegisterRoutes(router *httprouter.Router)
}
