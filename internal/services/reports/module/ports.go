package module

import dom "storewatch/internal/services/reports/domain"

// Ports holds the ports exposed by the reports module
type Ports struct {
	Trigger dom.TriggerPort
	Status  dom.StatusPort
	Runner  dom.RunnerPort
}
