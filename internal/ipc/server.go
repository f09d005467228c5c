package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"robodrummerd/internal/auth"
	"robodrummerd/internal/config"
)

// StatusSnapshot is a point-in-time view of every running component,
// assembled by whatever wires the scheduler/tempo/reservoir together.
type StatusSnapshot struct {
	Mode           string
	TempoHz        float64
	BPM            float64
	HitCount       uint64
	LastPrediction float64
	Threshold      float64
	SpectralDrift  bool
	SpectralRadius float64
}

// StatusProvider exposes the current StatusSnapshot to the IPC layer.
type StatusProvider interface {
	Status() StatusSnapshot
}

// ModeController lets clients switch the active output mode and
// threshold at runtime.
type ModeController interface {
	SetMode(mode string) error
	SetThreshold(threshold float64) error
}

// Server handles IPC communication with control clients.
type Server struct {
	socketPath     string
	authManager    *auth.Manager
	configMgr      *config.Manager
	statusProvider StatusProvider
	modeCtl        ModeController

	listener net.Listener
	mu       sync.Mutex
	clients  map[net.Conn]struct{}

	statusSubsMu sync.RWMutex
	statusSubs   map[net.Conn]bool
}

// NewServer creates a new IPC server.
func NewServer(
	socketPath string,
	authManager *auth.Manager,
	configMgr *config.Manager,
	statusProvider StatusProvider,
	modeCtl ModeController,
) (*Server, error) {
	return &Server{
		socketPath:     socketPath,
		authManager:    authManager,
		configMgr:      configMgr,
		statusProvider: statusProvider,
		modeCtl:        modeCtl,
		clients:        make(map[net.Conn]struct{}),
		statusSubs:     make(map[net.Conn]bool),
	}, nil
}

// Start opens the Unix socket, accepts connections until ctx is
// canceled, and periodically pushes status to subscribed clients.
func (s *Server) Start(ctx context.Context) error {
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	log.Printf("[IPC] Creating socket at %s", s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Printf("[IPC] Server listening, waiting for connections...")

	go s.acceptLoop(ctx)
	go s.statusPushLoop(ctx)

	<-ctx.Done()

	log.Printf("[IPC] Shutting down server...")

	s.mu.Lock()
	clientCount := len(s.clients)
	for conn := range s.clients {
		conn.Close()
	}
	s.mu.Unlock()

	log.Printf("[IPC] Closed %d client connections", clientCount)

	listener.Close()
	os.RemoveAll(s.socketPath)

	log.Printf("[IPC] Server stopped")

	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Printf("[IPC] Accept error: %v", err)
				continue
			}
		}

		remoteAddr := conn.RemoteAddr().String()
		log.Printf("[IPC] New client connection from %s", remoteAddr)

		s.mu.Lock()
		s.clients[conn] = struct{}{}
		clientCount := len(s.clients)
		s.mu.Unlock()

		log.Printf("[IPC] Active clients: %d", clientCount)

		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()

	defer func() {
		log.Printf("[IPC] Client disconnected: %s", remoteAddr)
		conn.Close()
		s.mu.Lock()
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.mu.Unlock()

		s.statusSubsMu.Lock()
		delete(s.statusSubs, conn)
		s.statusSubsMu.Unlock()

		log.Printf("[IPC] Active clients: %d", clientCount)
	}()

	reader := bufio.NewReader(conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				log.Printf("[IPC] Read error from %s: %v", remoteAddr, err)
			}
			return
		}

		req, err := DecodeRequest(line)
		if err != nil {
			log.Printf("[IPC] Invalid request format from %s: %v", remoteAddr, err)
			s.sendError(conn, "invalid request format")
			continue
		}

		isPollingCmd := req.Cmd == CmdStatus

		if !isPollingCmd {
			RequestLogger(req)
		}

		start := time.Now()
		resp := s.handleRequest(conn, req)

		if !isPollingCmd {
			ResponseLogger(resp, time.Since(start))
		}

		if err := s.sendResponse(conn, resp); err != nil {
			log.Printf("[IPC] Send error to %s: %v", remoteAddr, err)
			return
		}
	}
}

func (s *Server) handleRequest(conn net.Conn, req *Request) *Response {
	if req.Cmd == CmdPair {
		return s.handlePair(req)
	}

	clientKey := conn.RemoteAddr().String()
	if s.authManager.IsLockedOut(clientKey) {
		return NewErrorResponse("too many failed attempts, try again later")
	}

	if !s.authManager.ValidateToken(req.Token) {
		s.authManager.RecordAuthFailure(clientKey)
		return NewErrorResponse("unauthorized")
	}

	switch req.Cmd {
	case CmdStatus:
		return s.handleStatus()
	case CmdGetConfig:
		return s.handleGetConfig()
	case CmdSetConfig:
		return s.handleSetConfig(req)
	case CmdSetMode:
		return s.handleSetMode(req)
	case CmdSetThreshold:
		return s.handleSetThreshold(req)
	case CmdListClients:
		return s.handleListClients()
	case CmdRevokeClient:
		return s.handleRevokeClient(req)
	case CmdSubscribeStatus:
		return s.handleSubscribeStatus(conn)
	case CmdUnsubscribeStatus:
		return s.handleUnsubscribeStatus(conn)
	default:
		return NewErrorResponse("unknown command")
	}
}

func (s *Server) handlePair(req *Request) *Response {
	var pairReq PairRequest
	if req.Data != nil {
		if err := json.Unmarshal(req.Data, &pairReq); err != nil {
			return NewErrorResponse("invalid pair request")
		}
	}

	log.Printf("[AUTH] Pairing request from client: %q", pairReq.ClientName)

	token, clientID, requiresApproval, err := s.authManager.Pair(pairReq.ClientName)
	if err != nil {
		log.Printf("[AUTH] Pairing failed: %v", err)
		return NewErrorResponse(err.Error())
	}

	log.Printf("[AUTH] Paired client %s (ID: %s, approval required: %v)", pairReq.ClientName, clientID, requiresApproval)

	resp, err := NewSuccessResponse(PairResponse{
		Token:            token,
		ClientID:         clientID,
		RequiresApproval: requiresApproval,
	})
	if err != nil {
		return NewErrorResponse("internal error")
	}

	return resp
}

func (s *Server) handleStatus() *Response {
	snap := s.statusProvider.Status()
	resp, err := NewSuccessResponse(StatusResponse{
		Mode:           snap.Mode,
		TempoHz:        snap.TempoHz,
		BPM:            snap.BPM,
		HitCount:       snap.HitCount,
		LastPrediction: snap.LastPrediction,
		Threshold:      snap.Threshold,
		SpectralDrift:  snap.SpectralDrift,
		SpectralRadius: snap.SpectralRadius,
	})
	if err != nil {
		return NewErrorResponse("internal error")
	}
	return resp
}

func (s *Server) handleGetConfig() *Response {
	cfg := s.configMgr.Get()
	resp, err := NewSuccessResponse(ConfigResponse{
		DataDir:         cfg.DataDir,
		ModelName:       cfg.Reservoir.ModelName,
		Granularity:     cfg.Scheduler.Granularity,
		Subdivision:     cfg.Scheduler.Subdivision,
		Threshold:       cfg.Scheduler.Threshold,
		ToleranceFactor: cfg.Scheduler.ToleranceFactor,
		WaveType:        cfg.Actuator.WaveType,
	})
	if err != nil {
		return NewErrorResponse("internal error")
	}
	return resp
}

func (s *Server) handleSetConfig(req *Request) *Response {
	var cfgReq ConfigRequest
	if err := json.Unmarshal(req.Data, &cfgReq); err != nil {
		log.Printf("[CONFIG] Invalid setConfig request: %v", err)
		return NewErrorResponse("invalid config request")
	}

	cfg := s.configMgr.Get()
	if cfgReq.ModelName != nil {
		cfg.Reservoir.ModelName = *cfgReq.ModelName
	}
	if cfgReq.Subdivision != nil {
		cfg.Scheduler.Subdivision = *cfgReq.Subdivision
	}
	if cfgReq.Threshold != nil {
		cfg.Scheduler.Threshold = *cfgReq.Threshold
	}
	if cfgReq.ToleranceFactor != nil {
		cfg.Scheduler.ToleranceFactor = *cfgReq.ToleranceFactor
	}
	if cfgReq.WaveType != nil {
		cfg.Actuator.WaveType = *cfgReq.WaveType
	}

	if err := s.configMgr.Update(cfg); err != nil {
		log.Printf("[CONFIG] Failed to update config: %v", err)
		return NewErrorResponse(err.Error())
	}

	return s.handleGetConfig()
}

func (s *Server) handleSetMode(req *Request) *Response {
	var modeReq SetModeRequest
	if err := json.Unmarshal(req.Data, &modeReq); err != nil {
		return NewErrorResponse("invalid setMode request")
	}

	log.Printf("[SCHEDULER] Mode change requested: %s", modeReq.Mode)

	if err := s.modeCtl.SetMode(modeReq.Mode); err != nil {
		log.Printf("[SCHEDULER] Mode change failed: %v", err)
		return NewErrorResponse(err.Error())
	}

	return s.handleStatus()
}

func (s *Server) handleSetThreshold(req *Request) *Response {
	var threshReq SetThresholdRequest
	if err := json.Unmarshal(req.Data, &threshReq); err != nil {
		return NewErrorResponse("invalid setThreshold request")
	}

	if err := s.modeCtl.SetThreshold(threshReq.Threshold); err != nil {
		return NewErrorResponse(err.Error())
	}

	return s.handleStatus()
}

func (s *Server) handleListClients() *Response {
	clients, err := s.authManager.ListClients()
	if err != nil {
		return NewErrorResponse(err.Error())
	}

	out := make([]ClientInfoResponse, len(clients))
	for i, c := range clients {
		var lastSeen int64
		if !c.LastSeenAt.IsZero() {
			lastSeen = c.LastSeenAt.Unix()
		}
		out[i] = ClientInfoResponse{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt.Unix(), LastSeenAt: lastSeen}
	}

	resp, err := NewSuccessResponse(ListClientsResponse{Clients: out})
	if err != nil {
		return NewErrorResponse("internal error")
	}
	return resp
}

func (s *Server) handleRevokeClient(req *Request) *Response {
	var revokeReq RevokeClientRequest
	if err := json.Unmarshal(req.Data, &revokeReq); err != nil {
		return NewErrorResponse("invalid revokeClient request")
	}

	if err := s.authManager.RevokeClient(revokeReq.ClientID); err != nil {
		return NewErrorResponse(err.Error())
	}

	resp, _ := NewSuccessResponse(map[string]bool{"revoked": true})
	return resp
}

func (s *Server) handleSubscribeStatus(conn net.Conn) *Response {
	s.statusSubsMu.Lock()
	s.statusSubs[conn] = true
	count := len(s.statusSubs)
	s.statusSubsMu.Unlock()

	log.Printf("[STATUS] Client subscribed to status pushes (total: %d)", count)

	resp, _ := NewSuccessResponse(map[string]bool{"subscribed": true})
	return resp
}

func (s *Server) handleUnsubscribeStatus(conn net.Conn) *Response {
	s.statusSubsMu.Lock()
	delete(s.statusSubs, conn)
	count := len(s.statusSubs)
	s.statusSubsMu.Unlock()

	log.Printf("[STATUS] Client unsubscribed from status pushes (remaining: %d)", count)

	resp, _ := NewSuccessResponse(map[string]bool{"subscribed": false})
	return resp
}

// statusPushLoop periodically pushes a status snapshot to every
// subscribed client, in the style of the teacher's position-ticker
// goroutines.
func (s *Server) statusPushLoop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pushStatus()
		}
	}
}

func (s *Server) pushStatus() {
	s.statusSubsMu.RLock()
	if len(s.statusSubs) == 0 {
		s.statusSubsMu.RUnlock()
		return
	}
	subs := make([]net.Conn, 0, len(s.statusSubs))
	for conn := range s.statusSubs {
		subs = append(subs, conn)
	}
	s.statusSubsMu.RUnlock()

	snap := s.statusProvider.Status()
	msgBytes, err := NewPushMessage("status", StatusResponse{
		Mode:           snap.Mode,
		TempoHz:        snap.TempoHz,
		BPM:            snap.BPM,
		HitCount:       snap.HitCount,
		LastPrediction: snap.LastPrediction,
		Threshold:      snap.Threshold,
		SpectralDrift:  snap.SpectralDrift,
		SpectralRadius: snap.SpectralRadius,
	})
	if err != nil {
		return
	}
	msgBytes = append(msgBytes, '\n')

	for _, conn := range subs {
		if _, err := conn.Write(msgBytes); err != nil {
			s.statusSubsMu.Lock()
			delete(s.statusSubs, conn)
			s.statusSubsMu.Unlock()
		}
	}
}

func (s *Server) sendResponse(conn net.Conn, resp *Response) error {
	data, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = conn.Write(data)
	return err
}

func (s *Server) sendError(conn net.Conn, msg string) {
	s.sendResponse(conn, NewErrorResponse(msg))
}
