package schema

// Built-in payload schemas for the default reducer set. Family schemas
// stay permissive about optional fields so extensions can ride along in
// payloads; the identity fields the reducers key on are required.
const (
	tabSchema = `{
	tabId: string & !=""
	url?: string
	title?: string
	reason?: string
	bytes?: number & >=0
}`

	performanceSampleSchema = `{
	cpu?: number & >=0
	memoryBytes?: number & >=0
	batteryLevel?: number & >=0 & <=100
}`

	performanceLowSchema = `{
	metric: string & !=""
	level?: string
	value?: number
}`

	performanceThresholdsSchema = `{
	[string]: number
}`

	policyUpdateSchema = `{
	...
}`

	policyModeSchema = `{
	mode?: string
}`

	aiSuggestedSchema = `{
	kind: string & !=""
	detail?: string
	ecoScore?: number & >=0 & <=100
}`

	aiAppliedSchema = `{
	id: string & !=""
}`

	resourceAllocatedSchema = `{
	name: string & !=""
	holder?: string
	priority?: number & >=0
	bytes?: number & >=0
}`

	resourceReleasedSchema = `{
	name: string & !=""
}`
)

// DefaultSources returns the built-in schemas keyed by event type pattern.
func DefaultSources() map[string]string {
	return map[string]string{
		"redix:tab:*":                  tabSchema,
		"redix:performance:sample":     performanceSampleSchema,
		"redix:performance:low":        performanceLowSchema,
		"redix:performance:thresholds": performanceThresholdsSchema,
		"redix:policy:update":          policyUpdateSchema,
		"redix:policy:mode":            policyModeSchema,
		"redix:ai:suggested":           aiSuggestedSchema,
		"redix:ai:applied":             aiAppliedSchema,
		"redix:resource:allocated":     resourceAllocatedSchema,
		"redix:resource:released":      resourceReleasedSchema,
	}
}

// NewDefault builds a registry with every built-in schema registered.
func NewDefault() (*Registry, error) {
	r := New()
	for pattern, source := range DefaultSources() {
		if err := r.Register(pattern, source); err != nil {
			return nil, err
		}
	}
	return r, nil
}
