// Termtest is a testing tool for Unix terminal I/O. Lacking simple PTY support, running this tool
// manually is easier than writing automated tests.
package main

import (
	"context"
	"time"

	"github.com/arcanum-run/arcanum/internal/log"
	"github.com/arcanum-run/arcanum/internal/tty"
)

var logger = log.DefaultLogger()

func main() {
	ctx := context.Background()

	ctx, console, cancel := tty.ConsoleContext(ctx)
	defer cancel()

	select {
	case <-ctx.Done():
		logger.Debug("cause", context.Cause(ctx))
	default:
	}

	logger.Info("Echoing keys back to the terminal. Type keys.")

	timeout := time.After(5 * time.Second)

	for {
		select {
		case <-timeout:
			cancel()
			return
		case <-ctx.Done():
			if ctx.Err() != nil {
				logger.Error(context.Cause(ctx).Error())
			} else {
				logger.Info("Done")
			}

			return
		default:
		}

		key, err := console.ReadKey(ctx)
		if err != nil {
			continue
		}

		console.Display(rune(key))
	}
}
