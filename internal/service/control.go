package service

import (
	"context"

	"temperaturebox/internal/device"
	"temperaturebox/internal/models"
)

type ControlService struct {
	engine    *Scheduler
	link      device.Link
	listPorts func() ([]string, error)
}

func NewControlService(engine *Scheduler, link device.Link) *ControlService {
	return &ControlService{engine: engine, link: link, listPorts: device.ListPorts}
}

func (s *ControlService) Start(ctx context.Context, box int, basename string) error {
	return s.engine.Start(ctx, box, basename)
}

func (s *ControlService) Stop(ctx context.Context, box int) error {
	return s.engine.Stop(ctx, box)
}

func (s *ControlService) AddStep(ctx context.Context, box int, p StepParams) (models.Step, error) {
	return s.engine.AddStep(ctx, box, p.Temperature, p.DurationHours)
}

func (s *ControlService) ClearProtocol(ctx context.Context, box int) error {
	return s.engine.ClearProtocol(ctx, box)
}

func (s *ControlService) SetConnection(ctx context.Context, box int, conn models.Connection) error {
	return s.engine.SetConnection(ctx, box, conn.Port, conn.Address)
}

func (s *ControlService) SetPort(ctx context.Context, box int, port string) error {
	return s.engine.SetPort(ctx, box, port)
}

func (s *ControlService) SetAddress(ctx context.Context, box int, address int) error {
	return s.engine.SetAddress(ctx, box, address)
}

// Check reads the instrument of a box directly. It does not touch the run state.
func (s *ControlService) Check(ctx context.Context, box int) (models.Reading, error) {
	snap, err := s.engine.Snapshot(box)
	if err != nil {
		return models.Reading{}, err
	}
	sv, pv, err := s.link.ReadProcess(ctx, snap.Connection)
	if err != nil {
		return models.Reading{}, err
	}
	return models.Reading{Timestamp: s.engine.now().UTC(), Setpoint: sv, ProcessValue: pv}, nil
}

// Ports lists the serial ports that can be opened on this host.
func (s *ControlService) Ports(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.listPorts()
}
