package registry

// Default returns the built-in catalogue.
func Default() *Registry { return defaultRegistry }

var defaultRegistry = MustNew(
	[]Category{
		{ID: "fx", Label: "Exchange rates", Icon: "💱", Mode: ModePercent, Threshold: 0.5, TTLClass: Volatile, Key: "USD_RATE"},
		{ID: "smp", Label: "System marginal price", Icon: "⚡", Mode: ModePercent, Threshold: 3.0, TTLClass: Slow, Key: "LAND_SMP"},
		{ID: "rec", Label: "REC spot price", Icon: "🌱", Mode: ModePercent, Threshold: 2.0, TTLClass: Slow, Key: "LAND_REC"},
		{ID: "oil", Label: "Crude oil", Icon: "🛢", Mode: ModePercent, Threshold: 2.0, TTLClass: Volatile, Key: "WTI"},
		{ID: "lng", Label: "LNG tariff", Icon: "🔥", Mode: ModePercent, Threshold: 1.0, TTLClass: Slow, Key: "LNG_TANKER"},
		{ID: "rate", Label: "Interest rates", Icon: "🏦", Mode: ModePoints, Threshold: 0.10, TTLClass: Slow, Key: "TREASURY_3Y"},
	},
	[]Indicator{
		{Code: "USD_RATE", Category: "fx", Name: "USD/KRW", Unit: "원", Format: "%.2f"},
		{Code: "JPY_RATE", Category: "fx", Name: "JPY(100)/KRW", Unit: "원", Format: "%.2f"},
		{Code: "EUR_RATE", Category: "fx", Name: "EUR/KRW", Unit: "원", Format: "%.2f"},
		{Code: "CNY_RATE", Category: "fx", Name: "CNY/KRW", Unit: "원", Format: "%.2f"},

		{Code: "LAND_SMP", Category: "smp", Name: "SMP mainland", Unit: "원/kWh", Format: "%.2f"},
		{Code: "JEJU_SMP", Category: "smp", Name: "SMP Jeju", Unit: "원/kWh", Format: "%.2f"},

		{Code: "LAND_REC", Category: "rec", Name: "REC mainland", Unit: "원/REC", Format: "%.0f"},
		{Code: "JEJU_REC", Category: "rec", Name: "REC Jeju", Unit: "원/REC", Format: "%.0f"},

		{Code: "WTI", Category: "oil", Name: "WTI", Unit: "$/bbl", Format: "%.2f"},
		{Code: "BRENT", Category: "oil", Name: "Brent", Unit: "$/bbl", Format: "%.2f"},
		{Code: "DUBAI", Category: "oil", Name: "Dubai", Unit: "$/bbl", Format: "%.2f"},

		{Code: "LNG_TANKER", Category: "lng", Name: "LNG tanker", Unit: "원/MJ", Format: "%.2f"},
		{Code: "LNG_FUEL_CELL", Category: "lng", Name: "LNG fuel cell", Unit: "원/MJ", Format: "%.2f"},

		{Code: "CALL_RATE", Category: "rate", Name: "Call rate", Unit: "%", Format: "%.2f"},
		{Code: "CD_91", Category: "rate", Name: "CD 91d", Unit: "%", Format: "%.2f"},
		{Code: "CP_91", Category: "rate", Name: "CP 91d", Unit: "%", Format: "%.2f"},
		{Code: "TREASURY_3Y", Category: "rate", Name: "KTB 3y", Unit: "%", Format: "%.3f"},
		{Code: "TREASURY_5Y", Category: "rate", Name: "KTB 5y", Unit: "%", Format: "%.3f"},
		{Code: "TREASURY_10Y", Category: "rate", Name: "KTB 10y", Unit: "%", Format: "%.3f"},
		{Code: "CORP_AA_3Y", Category: "rate", Name: "Corporate AA- 3y", Unit: "%", Format: "%.3f"},
		{Code: "CORP_BBB_3Y", Category: "rate", Name: "Corporate BBB- 3y", Unit: "%", Format: "%.3f"},
	},
)
