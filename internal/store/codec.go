package store

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/vmihailenco/msgpack/v5"
)

const payloadVersion = 1

// Amounts travel as decimal strings so nothing is lost to floats.
type payload struct {
	Version     int               `msgpack:"v"`
	ID          string            `msgpack:"id"`
	Label       string            `msgpack:"label"`
	TakenAt     time.Time         `msgpack:"taken_at"`
	Fingerprint uint64            `msgpack:"fp"`
	Units       []unitDTO         `msgpack:"units"`
	Services    []model.Service   `msgpack:"services"`
	Pools       []model.CostPool  `msgpack:"pools"`
	Activities  []model.Activity  `msgpack:"activities"`
	Metrics     []metricDTO       `msgpack:"metrics"`
	ServiceOf   map[string]string `msgpack:"service_of"`
	PoolOf      map[string]string `msgpack:"pool_of"`
	Rows        []string          `msgpack:"rows"`
	Cells       []cellDTO         `msgpack:"cells"`
}

type unitDTO struct {
	ID          string `msgpack:"id"`
	Name        string `msgpack:"name"`
	LegalEntity string `msgpack:"le"`
	Staff       string `msgpack:"staff"`
	NonStaff    string `msgpack:"non_staff"`
	FTE         string `msgpack:"fte"`
}

type metricDTO struct {
	ID            string                       `msgpack:"id"`
	Name          string                       `msgpack:"name"`
	ServiceID     string                       `msgpack:"service"`
	SourceLE      string                       `msgpack:"source_le"`
	Franchises    map[string]string            `msgpack:"franchises"`
	LegalEntities map[string]map[string]string `msgpack:"les"`
}

type cellDTO struct {
	Row    string `msgpack:"r"`
	Column string `msgpack:"c"`
	Value  string `msgpack:"v"`
}

// Encode serializes a snapshot with its metadata.
func Encode(snap model.Snapshot) ([]byte, error) {
	s := snap.State()
	p := payload{
		Version:     payloadVersion,
		ID:          snap.ID,
		Label:       snap.Label,
		TakenAt:     snap.TakenAt,
		Fingerprint: snap.Fingerprint(),
		ServiceOf:   s.ServiceOf,
		PoolOf:      s.PoolOf,
		Rows:        s.Cells.Rows(),
	}
	for _, id := range s.UnitIDs() {
		u := s.Units[id]
		p.Units = append(p.Units, unitDTO{
			ID: u.ID, Name: u.Name, LegalEntity: u.LegalEntity,
			Staff: u.Staff.String(), NonStaff: u.NonStaff.String(), FTE: u.FTE.String(),
		})
	}
	for _, id := range s.ServiceIDs() {
		p.Services = append(p.Services, s.Services[id])
	}
	for _, id := range s.PoolIDs() {
		p.Pools = append(p.Pools, s.Pools[id])
	}
	for _, id := range s.ActivityIDs() {
		p.Activities = append(p.Activities, s.Activities[id])
	}
	for _, id := range s.MetricIDs() {
		m := s.Metrics[id]
		dto := metricDTO{
			ID: m.ID, Name: m.Name, ServiceID: m.ServiceID, SourceLE: m.SourceLE,
			Franchises:    make(map[string]string, len(m.Franchises)),
			LegalEntities: make(map[string]map[string]string, len(m.LegalEntities)),
		}
		for f, v := range m.Franchises {
			dto.Franchises[string(f)] = v.String()
		}
		for f, inner := range m.LegalEntities {
			les := make(map[string]string, len(inner))
			for le, v := range inner {
				les[string(le)] = v.String()
			}
			dto.LegalEntities[string(f)] = les
		}
		p.Metrics = append(p.Metrics, dto)
	}
	for _, c := range s.Cells.Cells() {
		p.Cells = append(p.Cells, cellDTO{Row: c.Row, Column: c.Column, Value: c.Value.String()})
	}

	data, err := msgpack.Marshal(&p)
	if err != nil {
		return nil, errors.Wrap(err, "encode snapshot")
	}
	return data, nil
}

// Decode rebuilds a snapshot and checks it against its recorded fingerprint.
func Decode(data []byte) (model.Snapshot, error) {
	var p payload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return model.Snapshot{}, errors.Wrap(err, "decode snapshot")
	}
	if p.Version != payloadVersion {
		return model.Snapshot{}, errors.Errorf("snapshot %s: unsupported payload version %d", p.ID, p.Version)
	}

	s := model.NewState()
	amount := func(field, v string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "snapshot %s: %s", p.ID, field)
		}
		return d, nil
	}

	for _, u := range p.Units {
		staff, err := amount("unit "+u.ID+" staff", u.Staff)
		if err != nil {
			return model.Snapshot{}, err
		}
		nonStaff, err := amount("unit "+u.ID+" non_staff", u.NonStaff)
		if err != nil {
			return model.Snapshot{}, err
		}
		fte, err := amount("unit "+u.ID+" fte", u.FTE)
		if err != nil {
			return model.Snapshot{}, err
		}
		s.Units[u.ID] = model.CostUnit{ID: u.ID, Name: u.Name, LegalEntity: u.LegalEntity, Staff: staff, NonStaff: nonStaff, FTE: fte}
	}
	for _, svc := range p.Services {
		s.Services[svc.ID] = svc
	}
	for _, pool := range p.Pools {
		s.Pools[pool.ID] = pool
	}
	for _, a := range p.Activities {
		s.Activities[a.ID] = a
	}
	for _, m := range p.Metrics {
		metric := model.Metric{
			ID: m.ID, Name: m.Name, ServiceID: m.ServiceID, SourceLE: m.SourceLE,
			Franchises:    make(map[model.Franchise]decimal.Decimal, len(m.Franchises)),
			LegalEntities: make(map[model.Franchise]map[model.LEOption]decimal.Decimal, len(m.LegalEntities)),
		}
		for f, v := range m.Franchises {
			d, err := amount("metric "+m.ID+" "+f, v)
			if err != nil {
				return model.Snapshot{}, err
			}
			metric.Franchises[model.Franchise(f)] = d
		}
		for f, inner := range m.LegalEntities {
			les := make(map[model.LEOption]decimal.Decimal, len(inner))
			for le, v := range inner {
				d, err := amount("metric "+m.ID+" "+f+"/"+le, v)
				if err != nil {
					return model.Snapshot{}, err
				}
				les[model.LEOption(le)] = d
			}
			metric.LegalEntities[model.Franchise(f)] = les
		}
		s.Metrics[m.ID] = metric
	}
	for unit, svc := range p.ServiceOf {
		s.ServiceOf[unit] = svc
	}
	for unit, pool := range p.PoolOf {
		s.PoolOf[unit] = pool
	}
	for _, row := range p.Rows {
		s.Cells.AddRow(row)
	}
	for _, c := range p.Cells {
		v, err := amount("cell "+c.Row+"/"+c.Column, c.Value)
		if err != nil {
			return model.Snapshot{}, err
		}
		s.Cells.Set(c.Row, c.Column, v)
	}

	snap := model.RestoreSnapshot(p.ID, p.Label, p.TakenAt, s)
	if snap.Fingerprint() != p.Fingerprint {
		return model.Snapshot{}, errors.Errorf("snapshot %s: fingerprint mismatch, payload is corrupt", p.ID)
	}
	return snap, nil
}
