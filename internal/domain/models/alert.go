package models

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

type Alert struct {
	Indicator string    `json:"indicator"`
	Category  string    `json:"category"`
	Direction Direction `json:"direction"`
	// Magnitude is in percent or in points depending on Unit.
	Magnitude float64 `json:"magnitude"`
	Unit      string  `json:"unit"`
	Threshold float64 `json:"threshold"`
	Current   float64 `json:"current"`
	Previous  float64 `json:"previous"`
}
