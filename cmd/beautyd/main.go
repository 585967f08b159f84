// Command beautyd runs the Beauty demo server: static file serving from a
// document root, a REST API built on the router, a plain file-listing API,
// and a chat WebSocket endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/paneda/beauty-sub000"
	"github.com/paneda/beauty-sub000/internal/demo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	address           string
	port              int
	docRoot           string
	keepAliveTimeout  time.Duration
	keepAliveMax      int
	connectionLimit   int
	authToken         string
	debug             bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "beautyd",
		Short: "Beauty HTTP/WebSocket demo server",
		Long:  "beautyd serves the Beauty library's reference demo: static files, a REST API, and a chat WebSocket endpoint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	cmd.Flags().StringVar(&opts.address, "address", "0.0.0.0", "address to listen on")
	cmd.Flags().IntVar(&opts.port, "port", 8080, "port to listen on")
	cmd.Flags().StringVar(&opts.docRoot, "doc-root", ".", "document root for static files and uploads")
	cmd.Flags().DurationVar(&opts.keepAliveTimeout, "keep-alive-timeout", 5*time.Second, "idle timeout before a keep-alive connection is closed")
	cmd.Flags().IntVar(&opts.keepAliveMax, "keep-alive-max", 1000, "maximum requests served per keep-alive connection")
	cmd.Flags().IntVar(&opts.connectionLimit, "connection-limit", 0, "maximum concurrent keep-alive connections (0 = unlimited)")
	cmd.Flags().StringVar(&opts.authToken, "auth-token", "", "bearer token required for Expect: 100-continue uploads (empty disables the check)")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "enable debug-level logging")

	return cmd
}

func run(opts *rootOptions) error {
	if opts.debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	log := logrus.WithField("component", "beautyd")

	sink, err := newDocRootSink(opts.docRoot)
	if err != nil {
		return fmt.Errorf("opening doc root %q: %w", opts.docRoot, err)
	}

	settings := beauty.Settings{
		KeepAliveTimeout: opts.keepAliveTimeout,
		KeepAliveMax:     opts.keepAliveMax,
		ConnectionLimit:  opts.connectionLimit,
		WsReceiveTimeout: 300 * time.Second,
		WsPingInterval:   100 * time.Second,
		WsPongTimeout:    5 * time.Second,
		MaxContentSize:   1024,
	}

	routerAPI := demo.NewRouterAPI()
	fileAPI := demo.NewFileAPI(opts.docRoot)
	chatEndpoint := demo.NewChatEndpoint("/ws/chat")

	addr := fmt.Sprintf("%s:%d", opts.address, opts.port)
	server, err := beauty.NewServer(addr, settings,
		beauty.WithFileSink(sink),
		beauty.WithRequestHandler(routerAPI.HandleRequest),
		beauty.WithRequestHandler(fileAPI.HandleRequest),
		beauty.WithExpectContinueHandler(authExpectContinueHandler(opts.authToken, log)),
		beauty.WithWsEndpoint("/ws/chat", chatEndpoint),
	)
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	server.SetDebugMsgHandler(func(msg string) { log.Debug(msg) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		cancel()
		server.Shutdown()
	}()

	log.WithFields(logrus.Fields{
		"address":  server.Addr(),
		"doc_root": opts.docRoot,
	}).Info("beauty demo server started")

	return server.Serve(ctx)
}

// authExpectContinueHandler rejects Expect: 100-continue uploads that do not
// carry "Authorization: Bearer <token>", so a large body is never read off
// the wire for a request that will just be denied. An empty token disables
// the check (every upload is allowed to continue).
func authExpectContinueHandler(token string, log *logrus.Entry) beauty.ExpectContinueHandler {
	return func(req *beauty.Request, reply *beauty.Reply) {
		if token == "" {
			return
		}
		log.WithField("path", req.RequestPath).Debug("Expect: 100-continue received")

		auth := req.HeaderValue("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
			reply.AddHeader("WWW-Authenticate", `Basic realm="Access to the site"`)
			reply.Send(beauty.StatusUnauthorized)
			return
		}
	}
}
