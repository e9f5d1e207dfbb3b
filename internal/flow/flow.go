// Package flow is the client-side wizard state machine (setup, phone, otp,
// group). It performs only local validation and member-list normalization;
// everything else is reflected from the gateway.
package flow

import (
	"context"
	"strings"
	"sync"

	"groupgate/internal/api"
)

// Step is a wizard step.
type Step int

const (
	StepSetup Step = iota
	StepPhone
	StepOTP
	StepGroup
)

func (s Step) String() string {
	switch s {
	case StepSetup:
		return "setup"
	case StepPhone:
		return "phone"
	case StepOTP:
		return "otp"
	case StepGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Validation errors. These reject a submission locally, before any network
// call.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

const (
	ErrEmptyBackend   = ValidationError("backend URL must not be empty")
	ErrEmptyPhone     = ValidationError("phone number must not be empty")
	ErrEmptyCode      = ValidationError("code must not be empty")
	ErrEmptyGroupName = ValidationError("group name must not be empty")
	ErrNoNumbers      = ValidationError("at least one member number is required")
)

// Gateway is the slice of the HTTP API the controller drives.
type Gateway interface {
	SendCode(ctx context.Context, phone string) (api.SendCodeResult, error)
	VerifyCode(ctx context.Context, p api.VerifyCodeParams) (string, error)
	CreateGroup(ctx context.Context, p api.CreateGroupParams) (api.CreateGroupResult, error)
}

// Controller owns the wizard's transient state. A failed submission leaves
// the current step unchanged; the caller re-submits or goes back.
//
// Submissions run on the UI's command goroutines while the render loop reads
// the accessors, so all state lives behind a mutex. The mutex is never held
// across a gateway call.
type Controller struct {
	connect func(baseURL string) Gateway

	mu       sync.Mutex
	gw       Gateway
	step     Step
	backend  string
	phone    string
	codeHash string
	clientID string
	session  string
}

// New creates a controller. connect builds a gateway client for a backend
// URL; a non-empty savedBackend skips the setup step.
func New(connect func(baseURL string) Gateway, savedBackend string) *Controller {
	c := &Controller{connect: connect, step: StepSetup}
	if savedBackend != "" {
		c.backend = savedBackend
		c.gw = connect(savedBackend)
		c.step = StepPhone
	}
	return c
}

func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

func (c *Controller) Backend() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend
}

func (c *Controller) Phone() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phone
}

func (c *Controller) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SubmitBackend installs the gateway location and advances to the phone
// step.
func (c *Controller) SubmitBackend(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrEmptyBackend
	}
	gw := c.connect(url)

	c.mu.Lock()
	c.backend = url
	c.gw = gw
	c.step = StepPhone
	c.mu.Unlock()
	return nil
}

// SubmitPhone requests a login code and advances to the otp step, carrying
// the correlation values forward.
func (c *Controller) SubmitPhone(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ErrEmptyPhone
	}

	c.mu.Lock()
	gw := c.gw
	c.mu.Unlock()

	res, err := gw.SendCode(ctx, phone)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.phone = phone
	c.codeHash = res.PhoneCodeHash
	c.clientID = res.ClientID
	c.step = StepOTP
	c.mu.Unlock()
	return nil
}

// SubmitCode verifies the code and advances to the group step with the
// returned session.
func (c *Controller) SubmitCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrEmptyCode
	}

	c.mu.Lock()
	gw := c.gw
	params := api.VerifyCodeParams{
		Phone:         c.phone,
		PhoneCodeHash: c.codeHash,
		Code:          code,
		ClientID:      c.clientID,
	}
	c.mu.Unlock()

	session, err := gw.VerifyCode(ctx, params)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.session = session
	c.codeHash = ""
	c.clientID = ""
	c.step = StepGroup
	c.mu.Unlock()
	return nil
}

// Back steps from otp to phone, discarding the correlation values.
func (c *Controller) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step == StepOTP {
		c.codeHash = ""
		c.clientID = ""
		c.step = StepPhone
	}
}

// SubmitGroup creates a group from the form fields. numbersBlob is the
// freeform member list. On success the step stays group and the session and
// phone are retained, so another group can be created without
// re-authenticating.
func (c *Controller) SubmitGroup(ctx context.Context, name, numbersBlob string, image []byte) (api.CreateGroupResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return api.CreateGroupResult{}, ErrEmptyGroupName
	}
	numbers := SplitNumbers(numbersBlob)
	if len(numbers) == 0 {
		return api.CreateGroupResult{}, ErrNoNumbers
	}

	c.mu.Lock()
	gw := c.gw
	session := c.session
	c.mu.Unlock()

	return gw.CreateGroup(ctx, api.CreateGroupParams{
		Session: session,
		Name:    name,
		Numbers: numbers,
		Image:   image,
	})
}

// SplitNumbers normalizes a freeform member list: newlines and commas both
// separate entries, each entry is trimmed, empty entries are dropped.
// Duplicates are kept; the gateway resolves each independently.
func SplitNumbers(blob string) []string {
	fields := strings.FieldsFunc(blob, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})
	numbers := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			numbers = append(numbers, f)
		}
	}
	return numbers
}
