package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/matchroom/go/internal/gateway"
)

func setupServer(port string, services *Services) *http.Server {
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{gateway.ErrorKindKey},
	})

	rpcPath, rpcHandler := gateway.NewHandler(gateway.NewService(services.Engine))
	router := gateway.NewRouter(services.Engine, services.Connections, services.Pusher)
	if services.Archive != nil {
		router.WithArchive(services.Archive)
	}
	handler := c.Handler(router.Handler(rpcPath, rpcHandler))

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
