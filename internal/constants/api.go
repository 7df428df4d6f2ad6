package constants

import "time"

const (
	// DefaultPort is the TCP port the Whatsminer API v3 listens on.
	DefaultPort = 4433

	// DefaultTimeout bounds every dial, write and read on the miner socket.
	DefaultTimeout = 10 * time.Second

	// DefaultAccount is the account used when none is configured.
	DefaultAccount = "super"

	// DefaultConfigFile is read when --config is not given.
	DefaultConfigFile = "miner-conf.json"

	// MaxResponseSize caps the declared length of a response frame.
	MaxResponseSize = 64 << 20 // 64MB
)

// Command identifiers and prefixes
const (
	// MutatingPrefix marks commands that need ts, token and account.
	MutatingPrefix = "set."

	// CmdGetDeviceInfo returns device details, including the salt under msg.salt.
	CmdGetDeviceInfo = "get.device.info"

	// ParamSalt asks get.device.info for the salt only.
	ParamSalt = "salt"

	// CmdSetMinerPools replaces the pool configuration. Its param is encrypted.
	CmdSetMinerPools = "set.miner.pools"

	// CmdSetUserChangePasswd changes an account password. Its param is encrypted.
	CmdSetUserChangePasswd = "set.user.change_passwd"
)

// EncryptedCommands lists the commands whose param must be AES encrypted.
var EncryptedCommands = []string{CmdSetMinerPools, CmdSetUserChangePasswd}
