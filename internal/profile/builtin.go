package profile

// Registered domain names. DomainAuto is not a profile: it asks the pipeline
// to detect the domain from OCR text.
const (
	DomainSaaS = "SaaS"
	DomainAPI  = "API"
	DomainChip = "Chip"
	DomainAuto = "AUTO"
)

func fp(v float64) *float64 { return &v }

// builtin holds the registered profiles keyed by lowercased domain name.
var builtin = map[string]*DomainProfile{
	"saas": newProfile(DomainProfile{
		ID:      "saas-v1",
		Domain:  DomainSaaS,
		Version: "1.0",
		Fields: []FieldSchema{
			{
				ID: "pricing", Name: "Pricing", Type: FieldCurrency, Required: true,
				Units:       []string{"$", "€", "£"},
				Description: "Monthly or annual subscription cost",
			},
			{
				ID: "api_latency", Name: "API Latency", Type: FieldNumber,
				Units:       []string{"ms", "s"},
				Validation:  &Validation{Min: fp(0), Max: fp(10000)},
				Description: "Average API response time",
			},
			{
				ID: "sla", Name: "SLA Uptime", Type: FieldNumber,
				Units:       []string{"%"},
				Validation:  &Validation{Min: fp(0), Max: fp(100)},
				Description: "Service Level Agreement uptime percentage",
			},
			{
				ID: "security_rating", Name: "Security Rating", Type: FieldNumber,
				Validation:  &Validation{Min: fp(1), Max: fp(10)},
				Description: "Security compliance score (1-10)",
			},
			{
				ID: "auth_type", Name: "Authentication Type", Type: FieldEnum,
				Enums:       []string{"OAuth 2.0", "API Key", "Basic Authentication", "JWT", "Bearer Token"},
				Description: "Supported authentication methods",
			},
			{
				ID: "onboarding_time", Name: "Onboarding Time", Type: FieldNumber,
				Units:       []string{"days", "weeks", "months"},
				Description: "Time to complete setup and go-live",
			},
			{
				ID: "nps_score", Name: "NPS Score", Type: FieldNumber,
				Validation:  &Validation{Min: fp(-100), Max: fp(100)},
				Description: "Net Promoter Score",
			},
		},
		Units: map[string][]string{
			"pricing":         {"$", "€", "£", "USD", "EUR", "GBP"},
			"api_latency":     {"ms", "s", "milliseconds", "seconds"},
			"sla":             {"%", "percent", "percentage"},
			"onboarding_time": {"days", "weeks", "months", "d", "w", "m"},
		},
		Rules: []Rule{
			{ID: "price-validation", Type: "validation",
				Condition: `field.id == "pricing" && value > 10000`,
				Action:    "flag_as_outlier", Priority: 1},
			{ID: "sla-normalize", Type: "normalization",
				Condition: `field.id == "sla" && unit != "%"`,
				Action:    "convert_to_percentage", Priority: 2},
		},
		SynonymsSeed: map[string][]string{
			"pricing":         {"price", "cost", "fee", "rate", "charge", "subscription"},
			"api_latency":     {"latency", "response_time", "delay", "lag", "speed"},
			"sla":             {"uptime", "availability", "service_level", "reliability"},
			"security_rating": {"security", "sec_score", "compliance", "security_score"},
			"auth_type":       {"authentication", "auth", "login", "access_control"},
			"onboarding_time": {"setup", "implementation", "go_live", "deployment"},
			"nps_score":       {"nps", "satisfaction", "customer_satisfaction", "rating"},
		},
	}),

	"api": newProfile(DomainProfile{
		ID:      "api-v1",
		Domain:  DomainAPI,
		Version: "1.0",
		Fields: []FieldSchema{
			{
				ID: "rate_limit", Name: "Rate Limit", Type: FieldNumber,
				Units:       []string{"req/min", "req/hour", "req/day"},
				Description: "Maximum requests per time period",
			},
			{
				ID: "auth_type", Name: "Authentication", Type: FieldEnum, Required: true,
				Enums:       []string{"OAuth 2.0", "API Key", "Basic", "JWT", "Bearer"},
				Description: "Authentication method",
			},
			{
				ID: "response_format", Name: "Response Format", Type: FieldEnum,
				Enums:       []string{"JSON", "XML", "CSV", "HTML", "Plain Text"},
				Description: "API response data format",
			},
			{
				ID: "max_payload", Name: "Max Payload Size", Type: FieldNumber,
				Units:       []string{"MB", "KB", "GB"},
				Description: "Maximum request payload size",
			},
			{
				ID: "timeout", Name: "Timeout", Type: FieldNumber,
				Units:       []string{"s", "ms"},
				Validation:  &Validation{Min: fp(0), Max: fp(300)},
				Description: "Request timeout period",
			},
		},
		Units: map[string][]string{
			"rate_limit":  {"req/min", "req/hour", "req/day", "requests/minute"},
			"max_payload": {"MB", "KB", "GB", "bytes"},
			"timeout":     {"s", "ms", "seconds", "milliseconds"},
		},
		SynonymsSeed: map[string][]string{
			"rate_limit":      {"rate_limiting", "throttling", "request_limit", "quota"},
			"auth_type":       {"authentication", "security", "access_method"},
			"response_format": {"format", "output", "data_format", "content_type"},
			"max_payload":     {"payload_size", "request_size", "body_limit"},
			"timeout":         {"response_timeout", "request_timeout", "deadline"},
		},
	}),

	"chip": newProfile(DomainProfile{
		ID:      "chip-v1",
		Domain:  DomainChip,
		Version: "1.0",
		Fields: []FieldSchema{
			{
				ID: "supply_voltage", Name: "Supply Voltage", Type: FieldRange, Required: true,
				Units:       []string{"V", "mV"},
				Validation:  &Validation{Min: fp(0), Max: fp(50)},
				Description: "Operating supply voltage range",
			},
			{
				ID: "supply_current", Name: "Supply Current", Type: FieldRange, Required: true,
				Units:       []string{"A", "mA", "μA"},
				Validation:  &Validation{Min: fp(0), Max: fp(10)},
				Description: "Operating supply current",
			},
			{
				ID: "frequency", Name: "Operating Frequency", Type: FieldRange,
				Units:       []string{"Hz", "kHz", "MHz", "GHz"},
				Validation:  &Validation{Min: fp(0)},
				Description: "Maximum operating frequency",
			},
			{
				ID: "power_consumption", Name: "Power Consumption", Type: FieldNumber,
				Units:       []string{"W", "mW", "μW"},
				Validation:  &Validation{Min: fp(0)},
				Description: "Typical power consumption",
			},
			{
				ID: "temperature_range", Name: "Operating Temperature", Type: FieldRange,
				Units:       []string{"°C", "K"},
				Description: "Operating temperature range",
			},
			{
				ID: "package_type", Name: "Package", Type: FieldString,
				Description: "IC package type and pin count",
			},
		},
		Units: map[string][]string{
			"supply_voltage":    {"V", "mV", "volts", "millivolts"},
			"supply_current":    {"A", "mA", "μA", "uA", "amps", "milliamps"},
			"frequency":         {"Hz", "kHz", "MHz", "GHz", "hertz"},
			"power_consumption": {"W", "mW", "μW", "uW", "watts"},
			"temperature_range": {"°C", "C", "K", "celsius", "kelvin"},
		},
		Rules: []Rule{
			{ID: "voltage-range-validation", Type: "validation",
				Condition: `field.id == "supply_voltage" && (min < 0 || max > 50)`,
				Action:    "flag_invalid_range", Priority: 1},
		},
		SynonymsSeed: map[string][]string{
			"supply_voltage":    {"vdd", "vcc", "voltage", "v_supply", "operating_voltage"},
			"supply_current":    {"idd", "icc", "current", "i_supply", "operating_current"},
			"frequency":         {"freq", "clock", "f_max", "operating_freq", "clock_freq"},
			"power_consumption": {"power", "p_total", "power_draw", "consumption"},
			"temperature_range": {"temp", "temperature", "ambient_temp", "operating_temp"},
			"package_type":      {"package", "packaging", "form_factor", "pin_count"},
		},
	}),
}
