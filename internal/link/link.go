package link

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Alia5/psxpad/internal/auth"
	"github.com/Alia5/psxpad/internal/log"
)

// Open opens the host link selected by cfg.Type. key only applies to tcp.
func Open(ctx context.Context, cfg Config, key auth.Key, logger *slog.Logger, rawLogger log.RawLogger) (*Stream, error) {
	switch cfg.Type {
	case TypeSerial, "":
		return OpenSerial(ctx, cfg, logger, rawLogger)
	case TypeTCP:
		l, err := ListenTCP(ctx, cfg, key, logger, rawLogger)
		if err != nil {
			return nil, err
		}
		return l.Stream, nil
	default:
		return nil, fmt.Errorf("unknown link type %q", cfg.Type)
	}
}
