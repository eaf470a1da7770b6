package handlers

import (
	"context"
	"net/http"

	"temperaturebox/internal/models"
	"temperaturebox/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseOp       models.Operator
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (models.Operator, error) {
	m.lastParseToken = token
	return m.parseOp, m.parseErr
}

type mockControl struct {
	err        error // returned by every command
	stepResult models.Step
	reading    models.Reading
	ports      []string
	portsErr   error

	lastBox      int
	lastBasename string
	lastStep     service.StepParams
	lastConn     models.Connection
	lastPort     string
	lastAddress  int
	lastOperator models.Operator
	calls        []string
}

func (m *mockControl) record(ctx context.Context, name string, box int) error {
	m.calls = append(m.calls, name)
	m.lastBox = box
	m.lastOperator, _ = service.OperatorFrom(ctx)
	return m.err
}

func (m *mockControl) Start(ctx context.Context, box int, basename string) error {
	m.lastBasename = basename
	return m.record(ctx, "start", box)
}
func (m *mockControl) Stop(ctx context.Context, box int) error {
	return m.record(ctx, "stop", box)
}
func (m *mockControl) AddStep(ctx context.Context, box int, p service.StepParams) (models.Step, error) {
	m.lastStep = p
	return m.stepResult, m.record(ctx, "add_step", box)
}
func (m *mockControl) ClearProtocol(ctx context.Context, box int) error {
	return m.record(ctx, "clear_protocol", box)
}
func (m *mockControl) SetConnection(ctx context.Context, box int, conn models.Connection) error {
	m.lastConn = conn
	return m.record(ctx, "set_connection", box)
}
func (m *mockControl) SetPort(ctx context.Context, box int, port string) error {
	m.lastPort = port
	return m.record(ctx, "set_port", box)
}
func (m *mockControl) SetAddress(ctx context.Context, box int, address int) error {
	m.lastAddress = address
	return m.record(ctx, "set_address", box)
}
func (m *mockControl) Check(ctx context.Context, box int) (models.Reading, error) {
	return m.reading, m.record(ctx, "check", box)
}
func (m *mockControl) Ports(ctx context.Context) ([]string, error) {
	return m.ports, m.portsErr
}

type mockMonitoring struct {
	boxes []models.BoxSnapshot
	err   error
}

func (m *mockMonitoring) ListBoxes(ctx context.Context) ([]models.BoxSnapshot, error) {
	return m.boxes, m.err
}

func (m *mockMonitoring) GetBox(ctx context.Context, box int) (models.BoxSnapshot, error) {
	if m.err != nil {
		return models.BoxSnapshot{}, m.err
	}
	if box < 0 || box >= len(m.boxes) {
		return models.BoxSnapshot{}, service.ErrUnknownBox
	}
	return m.boxes[box], nil
}

type mockEventLog struct {
	resp       []models.BoxEvent
	samples    []models.Sample
	err        error
	lastFilter service.LogFilter
	lastSample service.SampleFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.BoxEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}

func (m *mockEventLog) Samples(ctx context.Context, f service.SampleFilter) ([]models.Sample, error) {
	m.lastSample = f
	return m.samples, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service, opts ...Option) *gin.Engine {
	h := NewHandler(s, nil, opts...)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func snapshotFixture() []models.BoxSnapshot {
	return []models.BoxSnapshot{
		{
			Box: models.Box{
				ID:         0,
				Name:       "oven",
				Connection: models.Connection{Port: "/dev/ttyUSB0", Address: 1},
				Protocol:   []models.Step{{Index: 1, Temperature: 40, DurationHours: 2}},
				State:      models.RunState{Status: models.StatusRunning, CurrentStep: 1},
			},
			StatusText:   "Status: running\nstep: 1\n",
			ProtocolText: []string{"1: 40.00 C for 2.00 h"},
		},
		{
			Box: models.Box{ID: 1, Name: "dryer", State: models.RunState{Status: models.StatusIdle}},
		},
	}
}
