// SPDX-License-Identifier: MPL-2.0

package scanner

import "slices"

type (
	// Pattern is one content rule. Expr is an RE2 expression matched against a
	// single source line.
	Pattern struct {
		ID          string
		Severity    Severity
		Expr        string
		Description string
	}

	// CredentialPattern is a Pattern that targets a class of secret.
	CredentialPattern struct {
		Pattern
		Category CredentialCategory
	}
)

// home matches the usual spellings of the user's home directory prefix.
const home = `(?:~|\$HOME|\$\{HOME\})`

// exfilExpr matches commands that can move data off the machine.
const exfilExpr = `\b(?:curl|wget|nc|ncat|netcat|scp|rsync|ftp|sftp)\b`

//nolint:gochecknoglobals // Ordered rule table; copied before use.
var dangerousPatterns = []Pattern{
	// Command injection and remote code execution.
	{"subst-after-separator", SeverityCritical, `;\s*\$\(`, "command substitution chained after a separator"},
	{"pipe-into-subst", SeverityCritical, `\|\s*\$\(`, "output piped into a command substitution"},
	{"remote-pipe-shell", SeverityCritical, `\b(?:curl|wget)\b[^|]*\|\s*(?:sudo\s+)?(?:ba|z|da|k|fi)?sh\b`, "downloaded content piped into a shell"},
	{"eval-remote", SeverityCritical, `\beval\s+["']?\$\(\s*(?:curl|wget)\b`, "eval of downloaded content"},
	{"source-remote", SeverityCritical, `(?:\bsource|(?:^|\s)\.)\s+<\(\s*(?:curl|wget)\b`, "sourcing downloaded content"},
	{"base64-pipe-shell", SeverityCritical, `\bbase64\s+(?:-d|-D|--decode)\b[^|]*\|\s*(?:ba|z)?sh\b`, "base64-decoded payload piped into a shell"},
	{"hex-pipe-shell", SeverityCritical, `\b(?:printf|echo\s+-e)\s+["']?(?:\\x[0-9a-fA-F]{2}).*\|\s*(?:ba|z)?sh\b`, "hex-escaped payload piped into a shell"},

	// Destructive filesystem and disk operations.
	{"rm-root", SeverityCritical, `\brm\s+-[a-zA-Z]*[rR][a-zA-Z]*\s+(?:--no-preserve-root\s+)?(?:/|/\*|` + home + `/?)(?:\s|;|$)`, "recursive delete of the root or home directory"},
	{"dd-device", SeverityCritical, `\bdd\b[^;|]*\bof=/dev/(?:sd|hd|vd|xvd|nvme|disk|mmcblk)`, "raw write to a block device"},
	{"mkfs-device", SeverityCritical, `\bmkfs(?:\.\w+)?\s+(?:-\S+\s+)*/dev/`, "filesystem creation on a device"},
	{"fork-bomb", SeverityCritical, `:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`, "fork bomb"},

	// Reverse shells.
	{"dev-tcp", SeverityCritical, `/dev/(?:tcp|udp)/`, "raw network socket through /dev/tcp or /dev/udp"},
	{"netcat-exec", SeverityCritical, `\b(?:nc|ncat|netcat)\b[^|;]*\s-[a-zA-Z]*[ec]\s`, "netcat spawning a program"},
	{"socat-exec", SeverityCritical, `(?i)\bsocat\b.*\b(?:exec|system):`, "socat bridging a program to the network"},
	{"python-shell", SeverityCritical, `\bpython[23]?\s+-c\s+.*\b(?:socket|pty\.spawn)\b`, "scripted python shell"},
	{"perl-shell", SeverityCritical, `\bperl\s+-e\s+.*\b(?:socket|IO::Socket)\b`, "scripted perl shell"},

	// Loader injection and container or namespace escape.
	{"loader-injection", SeverityCritical, `\b(?:LD_PRELOAD|DYLD_INSERT_LIBRARIES)=`, "dynamic loader injection"},
	{"nsenter-host", SeverityCritical, `\bnsenter\b[^;|]*(?:-t\s*1\b|--target[= ]1\b)`, "namespace entry into PID 1"},
	{"privileged-container", SeverityCritical, `\b(?:docker|podman)\s+run\b[^;|]*(?:--privileged|-v\s*/:/|--pid[= ]host)`, "privileged container or host root mount"},
	{"container-socket", SeverityWarning, `/var/run/docker\.sock\b`, "container runtime socket access"},

	// Insecure but not necessarily malicious.
	{"http-download", SeverityWarning, `\b(?:curl|wget)\b[^|;]*\bhttp://`, "plain HTTP download"},
	{"setuid", SeverityWarning, `\bchmod\s+(?:-\w+\s+)*(?:[ugoa]*\+[rwxt]*s|0?[2467][0-7]{3}\b)`, "sets the setuid or setgid bit"},
	{"world-writable", SeverityWarning, `\bchmod\s+(?:-\w+\s+)*0?777\b`, "world-writable permissions"},
	{"sudo", SeverityWarning, `\bsudo\s+`, "privilege escalation through sudo"},
	{"rc-append", SeverityWarning, `>>\s*["']?` + home + `/\.(?:bashrc|bash_profile|zshrc|zshenv|zprofile|profile|config/fish/config\.fish)\b`, "appends to a shell startup file"},
	{"crontab-edit", SeverityWarning, `\bcrontab\s+-[er]\b|\|\s*crontab\b`, "modifies the crontab"},
	{"history-disable", SeverityWarning, `\bunset\s+HISTFILE\b|\bHISTFILE=/dev/null\b|\bset\s+\+o\s+history\b`, "disables shell history"},
	{"ansi-c-hex", SeverityWarning, `\$'(?:\\x[0-9a-fA-F]{2}){4,}`, "command text built from hex escapes"},

	{"eval-dynamic", SeverityInfo, `\beval\s+["']?\$`, "eval of dynamic content"},
	{"network-download", SeverityInfo, `\b(?:curl|wget)\b[^|;]*\bhttps://`, "network download"},
	{"alias-override", SeverityInfo, `\balias\s+(?:sudo|cd|rm|cp|mv|git|ssh|scp|gpg)=`, "alias shadows a sensitive command"},
}

//nolint:gochecknoglobals // Ordered rule table; copied before use.
var credentialPatterns = []CredentialPattern{
	{Pattern{"aws-credentials", SeverityWarning, `\.aws/(?:credentials|config)\b`, "reads AWS credentials"}, CategoryCloud},
	{Pattern{"aws-secret-env", SeverityWarning, `\$\{?AWS_(?:SECRET_ACCESS_KEY|SESSION_TOKEN)\b`, "reads AWS secret variables"}, CategoryCloud},
	{Pattern{"gcloud-credentials", SeverityWarning, `\.config/gcloud/(?:credentials\.db|application_default_credentials\.json|legacy_credentials)`, "reads Google Cloud credentials"}, CategoryCloud},
	{Pattern{"azure-credentials", SeverityWarning, `\.azure/(?:accessTokens\.json|msal_token_cache)`, "reads Azure credentials"}, CategoryCloud},

	{Pattern{"ssh-private-key", SeverityWarning, `\.ssh/id_(?:rsa|dsa|ecdsa|ed25519)(?:_sk)?\b`, "reads an SSH private key"}, CategorySSH},
	{Pattern{"ssh-authorized-keys", SeverityWarning, `\.ssh/authorized_keys\b`, "touches SSH authorized_keys"}, CategorySSH},

	{Pattern{"gpg-keyring", SeverityWarning, `\.gnupg/(?:private-keys-v1\.d|secring\.gpg)`, "reads the GnuPG private keyring"}, CategoryGPG},
	{Pattern{"gpg-export-secret", SeverityWarning, `\bgpg2?\s+(?:--\S+\s+)*--export-secret-(?:keys|subkeys)\b`, "exports GnuPG secret keys"}, CategoryGPG},

	{Pattern{"docker-config", SeverityWarning, `\.docker/config\.json\b`, "reads container registry credentials"}, CategoryContainer},
	{Pattern{"kube-config", SeverityWarning, `\.kube/config\b`, "reads Kubernetes credentials"}, CategoryContainer},

	{Pattern{"npm-token", SeverityWarning, `\.npmrc\b|\$\{?NPM_TOKEN\b`, "reads npm registry credentials"}, CategoryPackageManager},
	{Pattern{"pypi-token", SeverityWarning, `\.pypirc\b`, "reads PyPI credentials"}, CategoryPackageManager},
	{Pattern{"gem-cargo-credentials", SeverityWarning, `\.(?:gem|cargo)/credentials(?:\.toml)?\b`, "reads package registry credentials"}, CategoryPackageManager},
	{Pattern{"netrc", SeverityWarning, `\.netrc\b`, "reads .netrc credentials"}, CategoryPackageManager},

	{Pattern{"ai-api-key", SeverityWarning, `\$\{?(?:OPENAI|ANTHROPIC|GEMINI|GOOGLE_AI|MISTRAL|COHERE|GROQ|HUGGINGFACE(?:_HUB)?|HF)_(?:API_)?(?:KEY|TOKEN)\b`, "reads an AI provider API key"}, CategoryAIAPI},

	{Pattern{"shell-history", SeverityWarning, `\.(?:bash|zsh|sh|fish)_history\b|\.local/share/fish/fish_history\b|\$\{?HISTFILE\b`, "reads shell history"}, CategoryShellHistory},
}

// DangerousPatterns returns a copy of the built-in dangerous-construct rules in
// evaluation order.
func DangerousPatterns() []Pattern {
	return slices.Clone(dangerousPatterns)
}

// CredentialPatterns returns a copy of the built-in credential-access rules in
// evaluation order.
func CredentialPatterns() []CredentialPattern {
	return slices.Clone(credentialPatterns)
}
