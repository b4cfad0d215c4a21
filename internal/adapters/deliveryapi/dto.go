package deliveryapi

import (
	"bytes"
	"delivery-tracker/internal/domain"
	"encoding/json"
	"fmt"
)

// GeoJSON point, coordinates in [lon, lat] order.
type pointDto struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type packageDto struct {
	ID           string    `json:"_id"`
	Description  string    `json:"description"`
	Weight       float64   `json:"weight"`
	FromName     string    `json:"from_name"`
	FromAddress  string    `json:"from_address"`
	FromLocation pointDto  `json:"from_location"`
	ToName       string    `json:"to_name"`
	ToAddress    string    `json:"to_address"`
	ToLocation   pointDto  `json:"to_location"`
	FromUser     refString `json:"from_user"`
	ToUser       refString `json:"to_user"`
}

type deliveryDto struct {
	ID       string          `json:"_id"`
	Package  json.RawMessage `json:"package"`
	Status   string          `json:"status"`
	Location *pointDto       `json:"location,omitempty"`
}

// refString accepts either a bare id or a populated document with an _id.
type refString string

func (r *refString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = refString(s)
		return nil
	}
	var doc struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	*r = refString(doc.ID)
	return nil
}

func (p pointDto) toDomain() (domain.Coordinates, error) {
	return domain.CoordinatesFromList(p.Coordinates)
}

func (p packageDto) toDomain() (domain.Package, error) {
	from, err := p.FromLocation.toDomain()
	if err != nil {
		return domain.Package{}, fmt.Errorf("package %s from_location: %w", p.ID, err)
	}
	to, err := p.ToLocation.toDomain()
	if err != nil {
		return domain.Package{}, fmt.Errorf("package %s to_location: %w", p.ID, err)
	}
	return domain.Package{
		ID:           p.ID,
		Description:  p.Description,
		Weight:       p.Weight,
		FromName:     p.FromName,
		FromAddress:  p.FromAddress,
		FromLocation: from,
		ToName:       p.ToName,
		ToAddress:    p.ToAddress,
		ToLocation:   to,
		FromUser:     string(p.FromUser),
		ToUser:       string(p.ToUser),
	}, nil
}

// toDomain maps a delivery document. A package given only by id is resolved
// through pkgs; an unresolved package leaves Package zero except for its ID.
func (d deliveryDto) toDomain(pkgs map[string]domain.Package) (domain.Delivery, error) {
	status, err := domain.ParseDeliveryStatus(d.Status)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("delivery %s: %w", d.ID, err)
	}

	out := domain.Delivery{ID: d.ID, Status: status}

	raw := bytes.TrimSpace(d.Package)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &out.PackageID); err != nil {
			return domain.Delivery{}, fmt.Errorf("delivery %s package: %w", d.ID, err)
		}
		out.Package = pkgs[out.PackageID]
		out.Package.ID = out.PackageID
	default:
		var p packageDto
		if err := json.Unmarshal(raw, &p); err != nil {
			return domain.Delivery{}, fmt.Errorf("delivery %s package: %w", d.ID, err)
		}
		pkg, err := p.toDomain()
		if err != nil {
			return domain.Delivery{}, fmt.Errorf("delivery %s: %w", d.ID, err)
		}
		out.Package = pkg
		out.PackageID = pkg.ID
	}

	if d.Location != nil && len(d.Location.Coordinates) > 0 {
		loc, err := d.Location.toDomain()
		if err != nil {
			return domain.Delivery{}, fmt.Errorf("delivery %s location: %w", d.ID, err)
		}
		out.Location = loc
	}

	return out, nil
}
