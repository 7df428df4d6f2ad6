package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benmeehan/whatsminer-cli/internal/constants"
	"github.com/benmeehan/whatsminer-cli/internal/models"
	"github.com/benmeehan/whatsminer-cli/internal/utils"
	"github.com/benmeehan/whatsminer-cli/pkg/encryption"
)

var (
	// ErrSaltRequired is returned when a set.* command is built without a salt.
	ErrSaltRequired = errors.New("salt required for set.* commands; obtain it via get.device.info (param: \"salt\")")

	// ErrParamRequired is returned when an encrypted command has no param.
	ErrParamRequired = errors.New("param required")
)

var encryptedCommands = utils.SliceToSet(constants.EncryptedCommands)

// IsMutating reports whether cmd changes device state and therefore needs a token.
func IsMutating(cmd string) bool {
	return strings.HasPrefix(cmd, constants.MutatingPrefix)
}

// RequiresEncryption reports whether the param of cmd must be encrypted.
func RequiresEncryption(cmd string) bool {
	_, ok := encryptedCommands[cmd]
	return ok
}

// BuildRequest assembles the wire request for cmd.
//
// Queries carry only cmd and, when given, param. Mutating commands also carry
// ts, token and account, and need a salt. When ts is nil the current time from
// now is used. For encrypted commands param is mandatory and is replaced by its
// base64 ciphertext.
func BuildRequest(cmd, account, password string, param json.RawMessage, salt *string, ts *int64, now func() time.Time) (*models.Request, error) {
	req := &models.Request{Cmd: cmd}

	if !IsMutating(cmd) {
		if hasParam(param) {
			req.Param = param
		}
		return req, nil
	}

	if salt == nil {
		return nil, ErrSaltRequired
	}

	var effectiveTS int64
	if ts != nil {
		effectiveTS = *ts
	} else {
		effectiveTS = now().Unix()
	}

	token, key := encryption.DeriveToken(cmd, password, *salt, effectiveTS)
	req.TS = &effectiveTS
	req.Token = token
	req.Account = &account

	if RequiresEncryption(cmd) {
		if !hasParam(param) {
			return nil, fmt.Errorf("%w: command %s", ErrParamRequired, cmd)
		}

		encrypted, err := encryption.EncryptParam(param, key)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt param for %s: %w", cmd, err)
		}
		req.Param, err = json.Marshal(encrypted)
		if err != nil {
			return nil, err
		}
		return req, nil
	}

	if hasParam(param) {
		req.Param = param
	}
	return req, nil
}

// hasParam treats an empty value and the JSON literal null as no param.
func hasParam(param json.RawMessage) bool {
	trimmed := bytes.TrimSpace(param)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
