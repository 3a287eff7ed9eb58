package main

import (
	"os"
	"os/signal"
	"syscall"

	"costguardian/internal/bootstrap"
	"costguardian/pkg/logger"
)

func main() {
	c := bootstrap.NewContainer()
	c.MustInit()
	defer logger.Sync()

	if err := c.Start(); err != nil {
		c.Log.Errorw("Startup failed", "error", err)
		c.Shutdown()
		os.Exit(1)
	}

	waitForShutdown(c)
}

// waitForShutdown blocks until a signal arrives or a component cancels the
// application context, then shuts everything down
func waitForShutdown(c *bootstrap.Container) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		c.Log.Infow("Received shutdown signal", "signal", sig.String())
	case <-c.Context.Done():
		c.Log.Warn("Application context cancelled")
	}

	c.Shutdown()
}
