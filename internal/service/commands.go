package service

import (
	"context"
	"fmt"

	"temperaturebox/internal/models"
)

type commandKind int

const (
	cmdStart commandKind = iota + 1
	cmdStop
	cmdAddStep
	cmdClearProtocol
	cmdSetConnection
	cmdSetPort
	cmdSetAddress
)

func (k commandKind) String() string {
	switch k {
	case cmdStart:
		return "start"
	case cmdStop:
		return "stop"
	case cmdAddStep:
		return "add_step"
	case cmdClearProtocol:
		return "clear_protocol"
	case cmdSetConnection:
		return "set_connection"
	case cmdSetPort:
		return "set_port"
	case cmdSetAddress:
		return "set_address"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// command is one user action. The target box is bound when the command is
// built, never looked up later.
type command struct {
	kind     commandKind
	box      int
	operator models.Operator
	reply    chan commandResult

	basename    string
	temperature float64
	hours       float64
	port        string
	address     int
}

type commandResult struct {
	step models.Step
	err  error
}

// submit hands cmd to the scheduler goroutine and waits for its verdict.
// ctx only bounds the wait for a queue slot: once queued, the command is
// applied and submit reports its outcome.
func (s *Scheduler) submit(ctx context.Context, cmd command) commandResult {
	cmd.reply = make(chan commandResult, 1)
	cmd.operator, _ = OperatorFrom(ctx)
	select {
	case s.commands <- cmd:
	case <-s.done:
		return commandResult{err: ErrEngineClosed}
	case <-ctx.Done():
		return commandResult{err: ctx.Err()}
	}
	select {
	case res := <-cmd.reply:
		return res
	case <-s.done:
		select {
		case res := <-cmd.reply:
			return res
		default:
			return commandResult{err: ErrEngineClosed}
		}
	}
}

// Start queues a run of the box's protocol, logging to {data_directory}/{basename}.csv.
func (s *Scheduler) Start(ctx context.Context, box int, basename string) error {
	return s.submit(ctx, command{kind: cmdStart, box: box, basename: basename}).err
}

// Stop ends the run at once. No device call is made for the box afterwards.
func (s *Scheduler) Stop(ctx context.Context, box int) error {
	return s.submit(ctx, command{kind: cmdStop, box: box}).err
}

// AddStep appends a step and returns it with its assigned index.
func (s *Scheduler) AddStep(ctx context.Context, box int, temperature, hours float64) (models.Step, error) {
	res := s.submit(ctx, command{kind: cmdAddStep, box: box, temperature: temperature, hours: hours})
	return res.step, res.err
}

func (s *Scheduler) ClearProtocol(ctx context.Context, box int) error {
	return s.submit(ctx, command{kind: cmdClearProtocol, box: box}).err
}

func (s *Scheduler) SetConnection(ctx context.Context, box int, port string, address int) error {
	return s.submit(ctx, command{kind: cmdSetConnection, box: box, port: port, address: address}).err
}

func (s *Scheduler) SetPort(ctx context.Context, box int, port string) error {
	return s.submit(ctx, command{kind: cmdSetPort, box: box, port: port}).err
}

func (s *Scheduler) SetAddress(ctx context.Context, box int, address int) error {
	return s.submit(ctx, command{kind: cmdSetAddress, box: box, address: address}).err
}

// execute applies cmd on the scheduler goroutine.
func (s *Scheduler) execute(cmd command) commandResult {
	if cmd.box < 0 || cmd.box >= len(s.boxes) {
		return commandResult{err: fmt.Errorf("%w: %d", ErrUnknownBox, cmd.box)}
	}
	b := &s.boxes[cmd.box]

	var (
		res       commandResult
		eventType string
	)
	switch cmd.kind {
	case cmdStart:
		if res.err = startRun(b, cmd.basename, s.cfg.DataDirectory); res.err == nil {
			s.startedBy[b.ID] = cmd.operator
		}
	case cmdStop:
		res.err = stopRun(b)
		eventType = models.EventStop
	case cmdAddStep:
		res.step, res.err = appendStep(b, cmd.temperature, cmd.hours)
		eventType = models.EventEdit
	case cmdClearProtocol:
		res.err = clearProtocol(b)
		eventType = models.EventEdit
	case cmdSetConnection:
		res.err = setConnection(b, cmd.port, cmd.address)
		eventType = models.EventEdit
	case cmdSetPort:
		res.err = setPort(b, cmd.port)
		eventType = models.EventEdit
	case cmdSetAddress:
		res.err = setAddress(b, cmd.address)
		eventType = models.EventEdit
	default:
		res.err = fmt.Errorf("unsupported command %s", cmd.kind)
	}

	log := s.boxLog(b.ID)
	if res.err != nil {
		log.Infow("command_rejected", "command", cmd.kind.String(), "error", res.err)
		return res
	}
	log.Infow("command_applied", "command", cmd.kind.String(), "status", b.State.Status.String(),
		"operator", cmd.operator.Username)
	s.emitAs(b, eventType, s.now(), cmd.operator)
	return res
}
