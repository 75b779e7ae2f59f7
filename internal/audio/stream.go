package audio

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

const overflowBackoff = 250 * time.Millisecond

type streamer interface {
	Stream(w io.Writer) error
}

// streamWithRetry pumps audio into w until ctx is cancelled. Input overflows
// restart the stream; any other error ends it and is returned.
func streamWithRetry(ctx context.Context, s streamer, w io.Writer, wait func(time.Duration), logger *slog.Logger) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		err := s.Stream(w)
		if err == nil || ctx.Err() != nil {
			return nil
		}

		if strings.Contains(strings.ToLower(err.Error()), "overflow") {
			logger.Warn("microphone input overflow, restarting stream")
			wait(overflowBackoff)
			continue
		}

		logger.Error("microphone stream stopped", "error", err)
		return err
	}
}
