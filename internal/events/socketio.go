package events

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/zishang520/socket.io/v2/socket"
)

// SocketIOPublisher exposes a socket.io server where each connected client is
// addressable by the channel id it announced at handshake time. Emit targets
// a single client's channel; unknown channels are dropped silently.
type SocketIOPublisher struct {
	server *socket.Server

	mu       sync.RWMutex
	channels map[string]*socket.Socket
}

var _ Publisher = (*SocketIOPublisher)(nil)

func NewSocketIOPublisher() (*SocketIOPublisher, error) {
	server := socket.NewServer(nil, nil)

	p := &SocketIOPublisher{
		server:   server,
		channels: make(map[string]*socket.Socket),
	}

	err := server.On("connection", func(sockets ...any) {
		sock := sockets[0].(*socket.Socket)
		p.handleConnection(sock)
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// Handler returns the http handler to mount at /socket.io/.
func (p *SocketIOPublisher) Handler() http.Handler {
	return p.server.ServeHandler(nil)
}

func (p *SocketIOPublisher) handleConnection(sock *socket.Socket) {
	channelId, ok := handshakeHeader(sock.Handshake().Headers, "X-SRA-CHANNEL-ID")
	if !ok {
		slog.Warn("rejecting socket connection: missing X-SRA-CHANNEL-ID header", "socket_id", sock.Id())
		sock.Disconnect(true)
		return
	}

	p.mu.Lock()
	p.channels[channelId] = sock
	p.mu.Unlock()

	slog.Info("socket client connected", "channel_id", channelId, "socket_id", sock.Id())

	if err := sock.On("disconnect", func(...any) {
		p.mu.Lock()
		if current, ok := p.channels[channelId]; ok && current == sock {
			delete(p.channels, channelId)
		}
		p.mu.Unlock()
		slog.Info("socket client disconnected", "channel_id", channelId)
	}); err != nil {
		slog.Error("error registering disconnect handler", "channel_id", channelId, "error", err)
	}
}

func (p *SocketIOPublisher) Emit(event string, data any, channelId string) {
	p.mu.RLock()
	sock, ok := p.channels[channelId]
	p.mu.RUnlock()

	if !ok {
		slog.Warn("no connected client for channel, dropping event", "event", event, "channel_id", channelId)
		return
	}

	if err := sock.Emit(event, data); err != nil {
		slog.Error("error emitting event", "event", event, "channel_id", channelId, "error", err)
	}
}

func handshakeHeader(headers map[string][]string, name string) (string, bool) {
	for key, values := range headers {
		if strings.EqualFold(key, name) && len(values) > 0 && values[0] != "" {
			return values[0], true
		}
	}
	return "", false
}
