package registry

import "fmt"

// Stats is a point-in-time snapshot of registry population and reuse.
type Stats struct {
	TotalModels       int    `json:"totalModels"`
	ReuseCount        uint64 `json:"reuseCount"`
	UniqueModels      int    `json:"uniqueModels"`
	TenantRegistries  int    `json:"tenantRegistries"`
	TotalTenantModels int    `json:"totalTenantModels"`
}

func (s Stats) String() string {
	return fmt.Sprintf("models=%d unique=%d reused=%d tenants=%d tenantModels=%d",
		s.TotalModels, s.UniqueModels, s.ReuseCount, s.TenantRegistries, s.TotalTenantModels)
}

// CleanupStats reports the effect of one tenant cleanup run.
type CleanupStats struct {
	Tenant          string `json:"tenant"`
	ModelsRemoved   int    `json:"modelsRemoved"`
	MappingsRemoved int    `json:"mappingsRemoved"`
	DurationMicros  int64  `json:"durationMicros"`
}

func (s CleanupStats) String() string {
	return fmt.Sprintf("tenant=%s removed=%d mappings=%d in %dus",
		s.Tenant, s.ModelsRemoved, s.MappingsRemoved, s.DurationMicros)
}
