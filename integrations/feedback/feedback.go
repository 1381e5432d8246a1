// Package feedback publica los resultados del dispatcher hacia el sistema de aprendizaje.
package feedback

import (
	"context"
	"fmt"
	"strings"

	"github.com/AzielCF/az-crm/agent/domain"
	"github.com/AzielCF/az-crm/core/config"
	"github.com/sirupsen/logrus"
)

// Sink recibe cada DispatchLog persistido.
type Sink interface {
	Record(ctx context.Context, log *domain.DispatchLog) error
	Close() error
}

// New elige la implementación según FEEDBACK_DRIVER. Sin driver devuelve un sink vacío.
func New(cfg config.FeedbackConfig) (Sink, error) {
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "none", "noop":
		return Noop{}, nil
	case "http", "https":
		if cfg.URL == "" {
			return nil, fmt.Errorf("feedback: FEEDBACK_URL is required for the http driver")
		}
		logrus.Infof("[FEEDBACK] Sending outcomes to %s", cfg.URL)
		return NewHTTPSink(cfg.URL, cfg.Token), nil
	case "sqlite", "sqlite3", "postgres", "postgresql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("feedback: FEEDBACK_DSN is required for the %s driver", driver)
		}
		sink, err := OpenSQLSink(driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		logrus.Infof("[FEEDBACK] Writing outcomes to %s", sink.driver)
		return sink, nil
	default:
		return nil, fmt.Errorf("feedback: unknown driver %q", cfg.Driver)
	}
}

type Noop struct{}

func (Noop) Record(context.Context, *domain.DispatchLog) error { return nil }
func (Noop) Close() error                                      { return nil }
