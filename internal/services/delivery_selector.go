package services

import (
	"delivery-tracker/internal/domain"
	"slices"
)

// SelectDelivery returns the first delivery whose package id equals packageID.
// An empty packageID never matches.
func SelectDelivery(deliveries []domain.Delivery, packageID string) (domain.Delivery, bool) {
	if packageID == "" {
		return domain.Delivery{}, false
	}
	for _, d := range deliveries {
		if d.Package.ID == packageID {
			return d, true
		}
	}
	return domain.Delivery{}, false
}

// DeliverySelector memoizes SelectDelivery over immutable input snapshots.
//
// Each input carries a generation that only moves when the input actually
// changes; the selection is recomputed only when a generation moved. It is
// not safe for concurrent use and is owned by the dashboard loop.
type DeliverySelector struct {
	deliveries []domain.Delivery
	packageID  string

	inputGen uint64
	memoGen  uint64
	memo     domain.Delivery
	memoOK   bool
}

func NewDeliverySelector() *DeliverySelector {
	// memoGen starts behind inputGen so the first read computes.
	return &DeliverySelector{inputGen: 1}
}

// SetDeliveries replaces the deliveries snapshot. The slice is copied so later
// mutation by the caller cannot tear the selection. It reports whether the
// selected delivery changed.
func (s *DeliverySelector) SetDeliveries(deliveries []domain.Delivery) bool {
	if slices.Equal(s.deliveries, deliveries) {
		return false
	}
	before, beforeOK := s.Selected()
	s.deliveries = slices.Clone(deliveries)
	s.inputGen++
	after, afterOK := s.Selected()
	return beforeOK != afterOK || before != after
}

// SetPackageID replaces the selection and reports whether the selected
// delivery changed.
func (s *DeliverySelector) SetPackageID(id string) bool {
	if id == s.packageID {
		return false
	}
	before, beforeOK := s.Selected()
	s.packageID = id
	s.inputGen++
	after, afterOK := s.Selected()
	return beforeOK != afterOK || before != after
}

// Selected returns the memoized selection.
func (s *DeliverySelector) Selected() (domain.Delivery, bool) {
	if s.memoGen != s.inputGen {
		s.memo, s.memoOK = SelectDelivery(s.deliveries, s.packageID)
		s.memoGen = s.inputGen
	}
	return s.memo, s.memoOK
}

func (s *DeliverySelector) PackageID() string { return s.packageID }

// Deliveries returns a copy of the current snapshot.
func (s *DeliverySelector) Deliveries() []domain.Delivery { return slices.Clone(s.deliveries) }
