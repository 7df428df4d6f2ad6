package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/whatsminer-cli/internal/constants"
	"github.com/benmeehan/whatsminer-cli/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrSaltNotFound is returned when get.device.info does not carry msg.salt.
var ErrSaltNotFound = errors.New("could not obtain salt from get.device.info")

// Transport performs a single framed request/response exchange with a miner.
type Transport interface {
	Exchange(ctx context.Context, host string, port int, req *models.Request) (models.Response, error)
}

// ConnectionSettings identifies the miner and the account used to authenticate.
type ConnectionSettings struct {
	Host     string
	Port     int
	Account  string
	Password string
}

// MinerService builds authenticated requests and sends them to one miner.
// It holds no per-call state, so independent calls may run concurrently.
type MinerService struct {
	// Configuration Fields
	settings ConnectionSettings

	// Dependencies
	transport Transport
	logger    zerolog.Logger
	now       func() time.Time
}

// NewMinerService initializes a new MinerService. Host and password are required.
func NewMinerService(settings ConnectionSettings, transport Transport, logger zerolog.Logger) (*MinerService, error) {
	if settings.Host == "" {
		return nil, errors.New("miner host is required")
	}
	if settings.Password == "" {
		return nil, errors.New("account password is required")
	}
	if settings.Port == 0 {
		settings.Port = constants.DefaultPort
	}
	if settings.Account == "" {
		settings.Account = constants.DefaultAccount
	}

	return &MinerService{
		settings:  settings,
		transport: transport,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// SetClock replaces the time source used for default timestamps.
func (ms *MinerService) SetClock(now func() time.Time) {
	ms.now = now
}

// Prepare builds the request for cmd without sending it.
func (ms *MinerService) Prepare(cmd string, param json.RawMessage, salt *string, ts *int64) (*models.Request, error) {
	return BuildRequest(cmd, ms.settings.Account, ms.settings.Password, param, salt, ts, ms.now)
}

// Send performs the exchange for an already built request and returns the
// response unmodified.
func (ms *MinerService) Send(ctx context.Context, req *models.Request) (models.Response, error) {
	callID := uuid.New().String()
	logger := ms.logger.With().Str("call_id", callID).Str("cmd", req.Cmd).Logger()

	logger.Debug().Str("host", ms.settings.Host).Int("port", ms.settings.Port).Msg("Sending request to miner")
	start := time.Now()

	resp, err := ms.transport.Exchange(ctx, ms.settings.Host, ms.settings.Port, req)
	if err != nil {
		logger.Error().Err(err).Msg("Miner request failed")
		return models.Response{}, err
	}

	if e := logger.Debug(); e.Enabled() {
		e.Str("status", resp.Status()).Dur("duration", time.Since(start)).Msg("Miner request completed")
	}
	return resp, nil
}

// Call builds the request for cmd and sends it.
func (ms *MinerService) Call(ctx context.Context, cmd string, param json.RawMessage, salt *string, ts *int64) (models.Response, error) {
	req, err := ms.Prepare(cmd, param, salt, ts)
	if err != nil {
		return models.Response{}, err
	}
	return ms.Send(ctx, req)
}

// GetSalt queries get.device.info for the salt needed by set.* commands.
// The full response is returned alongside the salt for display.
func (ms *MinerService) GetSalt(ctx context.Context) (string, models.Response, error) {
	return ms.GetSaltWithParam(ctx, constants.ParamSalt)
}

// GetSaltWithParam is GetSalt with a custom get.device.info param.
func (ms *MinerService) GetSaltWithParam(ctx context.Context, param string) (string, models.Response, error) {
	raw, err := json.Marshal(param)
	if err != nil {
		return "", models.Response{}, err
	}

	resp, err := ms.Call(ctx, constants.CmdGetDeviceInfo, raw, nil, nil)
	if err != nil {
		return "", models.Response{}, fmt.Errorf("failed to query %s: %w", constants.CmdGetDeviceInfo, err)
	}

	salt, ok := resp.Salt()
	if !ok {
		return "", resp, ErrSaltNotFound
	}
	return salt, resp, nil
}
