package stream

import (
	"bufio"
	"io"
	"strings"

	"github.com/preludium/taskwatch/internal/application/ports"
)

// defaultFrameName is what the SSE wire format assigns to frames
// without an explicit event field.
const defaultFrameName = "message"

// readFrames consumes an event stream line by line and emits one Frame
// per blank-line-terminated block. Multi-line data fields are joined
// with newlines, comment lines are skipped, and CR line endings are
// tolerated. Returns when the stream ends or the reader fails.
func readFrames(r io.Reader, bufSize int, emit func(ports.Frame)) error {
	scanner := bufio.NewScanner(r)
	if bufSize > 0 {
		scanner.Buffer(make([]byte, 0, 4096), bufSize)
	}

	var frame ports.Frame
	var data []string

	flush := func() {
		if frame.Name == "" && len(data) == 0 && frame.ID == "" {
			return
		}
		if frame.Name == "" {
			frame.Name = defaultFrameName
		}
		frame.Data = []byte(strings.Join(data, "\n"))
		emit(frame)
		frame = ports.Frame{}
		data = nil
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "id":
			frame.ID = value
		case "event":
			frame.Name = value
		case "data":
			data = append(data, value)
		}
		// Unknown fields (including "retry") are ignored; reconnect
		// timing is owned by the manager, not the server.
	}

	return scanner.Err()
}
