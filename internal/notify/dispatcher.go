package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const sendTimeout = 30 * time.Second

// Dispatcher renders and sends templated mail in the background. Failures
// are logged and never retried.
type Dispatcher struct {
	mailer Mailer
	logger *zap.SugaredLogger
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher over mailer
func NewDispatcher(mailer Mailer, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{mailer: mailer, logger: logger}
}

// Dispatch queues one email. It returns immediately; the request context's
// values are kept but its cancellation is not.
func (d *Dispatcher) Dispatch(ctx context.Context, template, loc, to string, data any) {
	if to == "" {
		d.logger.Warnw("Email skipped, no recipient", "template", template)
		return
	}
	msg, err := Render(template, loc, to, data)
	if err != nil {
		d.logger.Errorw("Failed to render email", "template", template, "error", err)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()

		if err := d.mailer.Send(sendCtx, msg); err != nil {
			d.logger.Errorw("Failed to send email",
				"template", template,
				"to", to,
				"error", err,
			)
			return
		}
		d.logger.Infow("Email sent", "template", template, "to", to)
	}()
}

// Wait blocks until every queued email has been attempted.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
