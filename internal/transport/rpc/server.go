// Package rpc exposes operator endpoints over JSON-RPC for internal tooling.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/bouteflan/penrose-experiment/internal/corruption"
	"github.com/bouteflan/penrose-experiment/internal/domain"
	"github.com/bouteflan/penrose-experiment/internal/service"
)

// Server exposes operator RPC endpoints.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the session service.
func NewServer(svc *service.Service) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc}
	if err := rpcServer.RegisterName("Sessions", handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until it is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			log.WithError(err).Warn("rpc accept error")
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the operator RPC methods.
type Handler struct {
	service *service.Service
}

// SessionArgs identifies a session.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// EndSessionArgs asks to terminate a session.
type EndSessionArgs struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// ResetCorruptionArgs sets the corruption level of a session.
type ResetCorruptionArgs struct {
	SessionID string  `json:"session_id"`
	Level     float64 `json:"level"`
}

// ListSessionsArgs limits a session listing.
type ListSessionsArgs struct {
	Limit int `json:"limit"`
}

// ListSessionsResponse carries persisted sessions.
type ListSessionsResponse struct {
	Sessions []domain.SessionRecord `json:"sessions"`
}

// Empty is used by methods without arguments.
type Empty struct{}

func requireSession(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("session_id is required")
	}
	return id, nil
}

// Status returns the status of a session.
func (h *Handler) Status(req *SessionArgs, resp *domain.SessionStatus) error {
	if req == nil {
		return errors.New("status request is required")
	}
	id, err := requireSession(req.SessionID)
	if err != nil {
		return err
	}

	status, err := h.service.Status(context.Background(), id)
	if err != nil {
		return err
	}
	if resp != nil && status != nil {
		*resp = *status
	}
	return nil
}

// EndSession terminates an active session.
func (h *Handler) EndSession(req *EndSessionArgs, resp *domain.SessionStatus) error {
	if req == nil {
		return errors.New("end request is required")
	}
	id, err := requireSession(req.SessionID)
	if err != nil {
		return err
	}
	reason := req.Reason
	if reason == "" {
		reason = "operator"
	}

	status, err := h.service.EndSession(context.Background(), id, reason)
	if err != nil {
		return err
	}
	if resp != nil && status != nil {
		*resp = *status
	}
	return nil
}

// ResetCorruption overrides the corruption level of an active session.
func (h *Handler) ResetCorruption(req *ResetCorruptionArgs, resp *corruption.Description) error {
	if req == nil {
		return errors.New("reset request is required")
	}
	id, err := requireSession(req.SessionID)
	if err != nil {
		return err
	}

	desc, err := h.service.ResetCorruption(context.Background(), id, req.Level)
	if err != nil {
		return err
	}
	if resp != nil && desc != nil {
		*resp = *desc
	}
	return nil
}

// ListSessions lists persisted sessions, newest first.
func (h *Handler) ListSessions(req *ListSessionsArgs, resp *ListSessionsResponse) error {
	limit := 50
	if req != nil && req.Limit > 0 {
		limit = req.Limit
	}

	sessions, err := h.service.ListSessions(context.Background(), limit)
	if err != nil {
		return err
	}
	if resp != nil {
		resp.Sessions = sessions
	}
	return nil
}

// AggregateStats returns experiment-wide statistics.
func (h *Handler) AggregateStats(_ *Empty, resp *domain.ExperimentStats) error {
	stats, err := h.service.AggregateStats(context.Background())
	if err != nil {
		return err
	}
	if resp != nil && stats != nil {
		*resp = *stats
	}
	return nil
}
