package chain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

// rpcRequest is a minimal JSON-RPC 2.0 envelope for eth_subscribe /
// eth_unsubscribe calls.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// rpcResponse covers both the subscription-id reply to eth_subscribe and the
// push notifications delivered afterward under "eth_subscription".
type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Params *struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// wsLog is the shape of a single entry in an eth_subscribe("logs") push
// notification, decoded just far enough to hand to Decoder.Decode.
type wsLog struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    string         `json:"data"`
}

// WSSource is a domain.EventSource that subscribes to "logs" over a
// persistent websocket via eth_subscribe, reconnecting with exponential
// backoff on disconnect. Unlike PollSource it delivers logs as they are
// mined rather than in batches on a ticker.
type WSSource struct {
	wsURL      string
	decoder    *Decoder
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	onLog     func(domain.DecodedLog)
	onErr     func(error)
	nextReqID uint64

	closed chan struct{}
	done   chan struct{}
}

// NewWSSource builds a WSSource. minBackoff/maxBackoff fall back to 1s/30s
// when non-positive.
func NewWSSource(wsURL string, decoder *Decoder, minBackoff, maxBackoff time.Duration, logger *slog.Logger) *WSSource {
	if minBackoff <= 0 {
		minBackoff = time.Second
	}
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	return &WSSource{
		wsURL:      wsURL,
		decoder:    decoder,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		logger:     logger.With(slog.String("component", "chain_ws_source")),
		closed:     make(chan struct{}),
	}
}

// Listen registers the callbacks and starts the connect-and-reconnect loop.
func (s *WSSource) Listen(onLog func(domain.DecodedLog), onError func(error)) {
	s.mu.Lock()
	s.onLog = onLog
	s.onErr = onError
	select {
	case <-s.closed:
		// A previous Unlisten closed it; start the new loop with a fresh one.
		s.closed = make(chan struct{})
	default:
	}
	doneCh := make(chan struct{})
	s.done = doneCh
	s.mu.Unlock()

	go s.run(doneCh)
}

// Unlisten stops the reconnect loop and closes any live connection, blocking
// until the background goroutine has exited.
func (s *WSSource) Unlisten() {
	s.mu.Lock()
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	conn := s.conn
	doneCh := s.done
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
	if doneCh != nil {
		<-doneCh
	}
}

// run is the outer reconnect-with-backoff loop: each call to runConnection
// blocks until the connection drops, then run waits out a backoff before
// retrying, unless Unlisten has closed s.closed.
func (s *WSSource) run(doneCh chan struct{}) {
	defer close(doneCh)

	backoff := s.minBackoff
	for {
		select {
		case <-s.closed:
			return
		default:
		}

		err := s.runConnection()
		if err != nil {
			s.logger.Warn("websocket disconnected, reconnecting", slog.String("error", err.Error()), slog.Duration("backoff", backoff))
		}

		select {
		case <-s.closed:
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}

// runConnection dials, subscribes to "logs", and blocks reading push
// notifications until the connection errors or Unlisten fires. It returns
// nil only when Unlisten caused the exit.
func (s *WSSource) runConnection() error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.Dial(s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("chain: dialing %s: %w", s.wsURL, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	subID := atomic.AddUint64(&s.nextReqID, 1)
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      subID,
		Method:  "eth_subscribe",
		Params:  []any{"logs", map[string]any{}},
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("chain: sending eth_subscribe: %w", err)
	}

	pingStop := make(chan struct{})
	var pingWG sync.WaitGroup
	pingWG.Add(1)
	go func() {
		defer pingWG.Done()
		s.pingLoop(conn, pingStop)
	}()
	defer func() {
		close(pingStop)
		pingWG.Wait()
	}()

	for {
		select {
		case <-s.closed:
			return nil
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("chain: reading websocket message: %w", err)
		}
		s.handleMessage(raw)
	}
}

func (s *WSSource) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WSSource) handleMessage(raw []byte) {
	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return
	}
	if resp.Error != nil {
		s.fail(fmt.Errorf("chain: eth_subscribe error %d: %s", resp.Error.Code, resp.Error.Message))
		return
	}
	if resp.Method != "eth_subscription" || resp.Params == nil {
		return
	}

	var l wsLog
	if err := json.Unmarshal(resp.Params.Result, &l); err != nil {
		return
	}

	s.mu.Lock()
	onLog := s.onLog
	s.mu.Unlock()
	if onLog == nil {
		return
	}
	onLog(s.decoder.Decode(toEthLog(l)))
}

func (s *WSSource) fail(err error) {
	s.logger.Error("websocket source terminated", slog.String("error", err.Error()))
	s.mu.Lock()
	onErr := s.onErr
	s.mu.Unlock()
	if onErr != nil {
		onErr(err)
	}
}

var _ domain.EventSource = (*WSSource)(nil)

// toEthLog adapts the minimal push-notification shape into the
// core/types.Log the shared Decoder expects.
func toEthLog(l wsLog) ethtypes.Log {
	data := common.FromHex(l.Data)
	return ethtypes.Log{
		Address: l.Address,
		Topics:  l.Topics,
		Data:    data,
	}
}
