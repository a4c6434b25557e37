package controller

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/arakoodev/k8s-cli-agents/internal/apierror"
)

const (
	maxCodeURLLen     = 2048
	maxCommandLen     = 1000
	maxPromptLen      = 10000
	codeChecksumShape = `^[0-9a-f]{64}$`
)

var (
	codeChecksumRe = regexp.MustCompile(codeChecksumShape)
	sessionIDRe    = regexp.MustCompile(`^[0-9a-f-]{36}$`)

	// commandInjectionPatterns are the shell metacharacter sequences spec section
	// 4.1 requires createSession to reject outright, rather than trust the boot
	// script's own escaping.
	commandInjectionPatterns = []string{"$(", "`", "${", "<(", ">("}
)

// createSessionRequest is the body of POST /api/sessions, per spec section 6.
type createSessionRequest struct {
	CodeURL      string `json:"codeUrl"`
	CodeChecksum string `json:"codeChecksum"`
	Command      string `json:"command"`
	Prompt       string `json:"prompt"`
}

// validateCreateSession implements spec section 4.1's admission rules. It never
// logs or echoes the rejected values back verbatim beyond the reason string,
// per spec section 7's "failure reasons are never echoed verbatim" policy --
// the reasons here are deliberately generic.
func (ctl *Controller) validateCreateSession(req createSessionRequest) error {
	if err := ctl.validateCodeURL(req.CodeURL); err != nil {
		return err
	}
	if req.CodeChecksum != "" && !codeChecksumRe.MatchString(req.CodeChecksum) {
		return apierror.New(apierror.KindValidation, "codeChecksum must be a 64-character hex sha256 digest")
	}
	if err := validateCommand(req.Command); err != nil {
		return err
	}
	if len(req.Prompt) > maxPromptLen {
		return apierror.New(apierror.KindValidation, "prompt exceeds maximum length")
	}
	return nil
}

// validateCodeURL enforces spec section 4.1's codeUrl constraints: http(s), length
// bound, an allowlisted hostname, and never a private/loopback/link-local address
// -- the SSRF block of spec scenario S4.
func (ctl *Controller) validateCodeURL(raw string) error {
	if raw == "" || len(raw) > maxCodeURLLen {
		return apierror.New(apierror.KindValidation, "codeUrl must be non-empty and at most 2048 characters")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return apierror.New(apierror.KindValidation, "codeUrl is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apierror.New(apierror.KindValidation, "codeUrl must use http or https")
	}
	host := u.Hostname()
	if host == "" {
		return apierror.New(apierror.KindValidation, "codeUrl must carry a hostname")
	}
	if !ctl.hostnameAllowed(host) {
		return apierror.New(apierror.KindValidation, "codeUrl hostname is not in the configured allowlist")
	}
	if isDisallowedAddress(host) {
		return apierror.New(apierror.KindValidation, "codeUrl must not resolve to a private, loopback, or link-local address")
	}
	return nil
}

// hostnameAllowed checks host against the configured allowedCodeDomains, which
// supports a leading "*." for suffix match, per spec section 6.
func (ctl *Controller) hostnameAllowed(host string) bool {
	host = strings.ToLower(host)
	for _, domain := range ctl.cfg.AllowedCodeDomains {
		if domain == host {
			return true
		}
		if suffix, ok := strings.CutPrefix(domain, "*."); ok && strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// isDisallowedAddress reports whether host is a literal IP in a private, loopback,
// or link-local range. A non-IP (DNS) hostname is not resolved here -- the
// allowlist in hostnameAllowed is the admission boundary for those, matching spec
// section 4.1's treatment of the allowlist and the address check as two distinct
// rules.
func isDisallowedAddress(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// validateCommand implements spec section 4.1's command constraints: length bound
// and a reject-list of shell metacharacter sequences that would let command
// substitution reach whatever shell the boot script eventually uses -- spec
// scenario S5.
func validateCommand(command string) error {
	if command == "" || len(command) > maxCommandLen {
		return apierror.New(apierror.KindValidation, "command must be non-empty and at most 1000 characters")
	}
	for _, pattern := range commandInjectionPatterns {
		if strings.Contains(command, pattern) {
			return apierror.New(apierror.KindValidation, "command must not contain shell substitution syntax")
		}
	}
	return nil
}

// validateSessionID implements getSession's id-shape check from spec section 4.1.
func validateSessionID(sessionID string) error {
	if !sessionIDRe.MatchString(sessionID) {
		return apierror.New(apierror.KindValidation, "sessionId has an invalid shape")
	}
	return nil
}
