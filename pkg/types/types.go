// Package types defines the data shapes shared by the beacon:
// samples, leveled reports and the chat-style notification payload.
package types

import (
	"fmt"
	"time"
)

// Level is the severity attached to a Report
type Level string

const (
	LevelInfo Level = "info"
	LevelWarn Level = "warn"
)

// Footer identifies the originating beacon in every notification
const Footer = "StatBeacon"

// TimeLayout renders day/month/year, hour:minute:second
const TimeLayout = "02/01/2006, 15:04:05"

// Notification colors
const (
	ColorAlert  = "#ff0000"
	ColorUpdate = "#228B22"
)

// TemperatureReading is a single hardware sensor reading
type TemperatureReading struct {
	Label       string  `json:"label"`
	Temperature float64 `json:"temperature"` // Celsius
}

// Sample is a point-in-time reading produced once per loop iteration
type Sample struct {
	CPUPercent     float64              `json:"cpu_percent"`    // 0-100, aggregate across cores
	MemoryPercent  float64              `json:"memory_percent"` // used/total*100
	Temperature    float64              `json:"average_temperature_celsius"`
	HasTemperature bool                 `json:"has_temperature"` // false when no sensors reported
	Cores          int                  `json:"cores"`
	Sensors        []TemperatureReading `json:"sensors,omitempty"`
	Timestamp      string               `json:"timestamp"`
}

// Report is a presentation-ready view of a Sample
type Report struct {
	Name  string `json:"name"`
	Level Level  `json:"level"`
	CPU   string `json:"cpu"`
	Mem   string `json:"mem"`
	Temp  string `json:"temp"`
	Time  string `json:"time"`
}

// Field is one labeled value in a notification attachment
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Attachment is the rich block rendered by the chat consumer
type Attachment struct {
	Color  string  `json:"color"`
	Title  string  `json:"title"`
	Text   string  `json:"text"`
	Fields []Field `json:"fields"`
	Footer string  `json:"footer"`
}

// Notification is the wire payload posted to the stat and alert endpoints
type Notification struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
}

// FormatTime renders t in UTC using TimeLayout
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// FormatPercent renders a percentage with two decimals
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// FormatTemperature renders a Celsius value with two decimals, or N/A
// when no sensor data is available.
func FormatTemperature(v float64, ok bool) string {
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%.2f°C", v)
}

// NewReport builds a Report for the named beacon from a Sample
func NewReport(name string, level Level, s Sample) Report {
	return Report{
		Name:  name,
		Level: level,
		CPU:   FormatPercent(s.CPUPercent),
		Mem:   FormatPercent(s.MemoryPercent),
		Temp:  FormatTemperature(s.Temperature, s.HasTemperature),
		Time:  s.Timestamp,
	}
}

// NewNotification transforms a Report into its notification payload.
// Only LevelWarn is rendered as an alert; every other level is an update.
func NewNotification(r Report) Notification {
	var (
		text  string
		color string
		title string
		line  string
	)
	if r.Level == LevelWarn {
		text = fmt.Sprintf("Alert: %s is experiencing high resource usage!", r.Name)
		color = ColorAlert
		title = "System Alert"
		line = "The system is running low on resources."
	} else {
		text = fmt.Sprintf("Update: %s resource usage", r.Name)
		color = ColorUpdate
		title = "System Update"
		line = "The system is currently ok."
	}

	return Notification{
		Text: text,
		Attachments: []Attachment{{
			Color: color,
			Title: title,
			Text:  line,
			Fields: []Field{
				{Title: "Name", Value: r.Name, Short: true},
				{Title: "Status", Value: string(r.Level), Short: true},
				{Title: "CPU", Value: r.CPU, Short: true},
				{Title: "Memory", Value: r.Mem, Short: true},
				{Title: "Temperature", Value: r.Temp, Short: true},
				{Title: "Time", Value: r.Time, Short: true},
			},
			Footer: Footer,
		}},
	}
}
