package protocol

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/minewatch/emergency/internal/model"
)

// Catalog is the immutable set of emergency protocols known to the
// executor.
type Catalog struct {
	byID  map[string]model.EmergencyProtocol
	order []string
}

func NewCatalog(protocols []model.EmergencyProtocol) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]model.EmergencyProtocol, len(protocols))}
	for _, p := range protocols {
		if p.ID == "" {
			return nil, fmt.Errorf("protocol without id: %q", p.Name)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate protocol id %q", p.ID)
		}
		if len(p.RequiredActions) == 0 {
			return nil, fmt.Errorf("protocol %s has no actions", p.ID)
		}
		c.byID[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// DefaultCatalog returns the built-in protocol set.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultProtocols())
	if err != nil {
		panic(err) // built-in data; cannot fail
	}
	return c
}

// LoadCatalog reads a protocol catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f struct {
		Protocols []model.EmergencyProtocol `yaml:"protocols"`
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse protocol catalog: %w", err)
	}
	if len(f.Protocols) == 0 {
		return nil, fmt.Errorf("protocol catalog %s is empty", path)
	}
	return NewCatalog(f.Protocols)
}

func (c *Catalog) Get(id string) (model.EmergencyProtocol, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// All returns the protocols in catalog order.
func (c *Catalog) All() []model.EmergencyProtocol {
	out := make([]model.EmergencyProtocol, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// DefaultProtocols returns the built-in emergency procedures for the
// phosphate site.
func DefaultProtocols() []model.EmergencyProtocol {
	return []model.EmergencyProtocol{
		{
			ID:            "DUST_STORM_001",
			Name:          "Dust Storm Protocol",
			Description:   "Emergency response to a dust storm with explosion risk",
			Priority:      1,
			EstimatedTime: 450,
			RequiredActions: []string{
				"Immediate shutdown of all non-essential electrical equipment",
				"Activate emergency misting and ventilation systems",
				"Evacuation of exposed personnel to pressurized shelters",
				"Continuous monitoring of dust concentrations",
				"Mobilize decontamination teams",
				"Notify environmental authorities",
			},
			AffectedZones:     []string{"extraction", "processing", "storage"},
			PersonnelRequired: 25,
			EquipmentNeeded:   []string{"Misting systems", "P3 respirators", "Portable detectors"},
		},
		{
			ID:            "CHEM_CASCADE_001",
			Name:          "Chemical Cascade Protocol",
			Description:   "Response to a chemical leak with domino effect",
			Priority:      1,
			EstimatedTime: 600,
			RequiredActions: []string{
				"Immediate isolation of the leak sources",
				"Directed evacuation following the wind rose",
				"Deploy the mobile decontamination unit",
				"Emergency chemical neutralization",
				"Medical monitoring of exposed personnel",
				"Alert external health services",
				"Containment of contaminated effluents",
			},
			AffectedZones:     []string{"chemical", "processing", "environment"},
			PersonnelRequired: 15,
			EquipmentNeeded:   []string{"Gas-tight suits", "Chemical neutralizers", "Ambulance"},
		},
		{
			ID:            "EQUIP_CASCADE_001",
			Name:          "Cascade Failure Protocol",
			Description:   "Response to chained equipment failures",
			Priority:      2,
			EstimatedTime: 300,
			RequiredActions: []string{
				"Controlled shutdown of the production line",
				"Isolation of the failed equipment",
				"Emergency structural inspection",
				"Secure the pressurized installations",
				"Activate the backup systems",
				"Assess the propagation risk",
			},
			AffectedZones:     []string{"processing", "drying"},
			PersonnelRequired: 12,
			EquipmentNeeded:   []string{"Diagnostic tools", "Lifting equipment", "Spare parts"},
		},
		{
			ID:            "ENV_CONTAM_001",
			Name:          "Environmental Contamination Protocol",
			Description:   "Response to contamination of the surrounding environment",
			Priority:      2,
			EstimatedTime: 720,
			RequiredActions: []string{
				"Stop the discharges at the source",
				"Containment of the contaminated area",
				"Emergency water, soil and air sampling",
				"Notify environmental authorities",
				"Activate the remediation plan",
				"Health monitoring of the local population",
			},
			AffectedZones:     []string{"environment", "chemical"},
			PersonnelRequired: 8,
			EquipmentNeeded:   []string{"Sampling kits", "Watertight barriers", "Mobile laboratory"},
		},
	}
}
