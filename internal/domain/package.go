package domain

// Represents a shippable item owned by the fetch layer.
// A Package is read-only to the dashboard core; its origin and destination
// drive the origin/destination markers of the selected delivery.
type Package struct {
	ID           string
	Description  string
	Weight       float64
	FromName     string
	FromAddress  string
	FromLocation Coordinates
	ToName       string
	ToAddress    string
	ToLocation   Coordinates
	FromUser     string
	ToUser       string
}
