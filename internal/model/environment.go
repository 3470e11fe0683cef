package model

// WeatherCondition is the ambient weather snapshot for one tick.
type WeatherCondition struct {
	Temperature   float64 `json:"temperature"`    // °C
	Humidity      float64 `json:"humidity"`       // %
	WindSpeed     float64 `json:"wind_speed"`     // m/s
	WindDirection float64 `json:"wind_direction"` // degrees
	Pressure      float64 `json:"pressure"`       // hPa
	Visibility    float64 `json:"visibility"`     // km
	Precipitation float64 `json:"precipitation"`  // mm/h
}

// ProductionMetrics describes plant throughput for one tick.
type ProductionMetrics struct {
	HourlyProduction  float64 `json:"hourly_production"`  // tonnes/h
	QualityGrade      float64 `json:"quality_grade"`      // % P2O5
	EnergyConsumption float64 `json:"energy_consumption"` // kWh
	WaterUsage        float64 `json:"water_usage"`        // m³/h
	WasteGenerated    float64 `json:"waste_generated"`    // tonnes/h
	EfficiencyRate    float64 `json:"efficiency_rate"`    // 0..1
}
