package server

// The wire contract carries two generations of field names: the dashboard
// sends device_name/device_type/partition_name while newer clients send the
// bare forms. Each resource gets one canonical body type here and a
// normalize method that folds the aliases, so handlers never look at both.

type deviceBody struct {
	Name       string `json:"name"`
	DeviceName string `json:"device_name"`
	Type       string `json:"type"`
	DeviceType string `json:"device_type"`
	Capacity   string `json:"capacity"`
	Status     string `json:"status"`
}

func (b *deviceBody) normalize() {
	b.Name = firstOf(b.Name, b.DeviceName)
	b.Type = firstOf(b.Type, b.DeviceType)
}

type deviceUpdateBody struct {
	Name       *string `json:"name"`
	DeviceName *string `json:"device_name"`
	Type       *string `json:"type"`
	DeviceType *string `json:"device_type"`
	Capacity   *string `json:"capacity"`
	Status     *string `json:"status"`
}

func (b *deviceUpdateBody) normalize() {
	b.Name = firstSet(b.Name, b.DeviceName)
	b.Type = firstSet(b.Type, b.DeviceType)
}

type partitionBody struct {
	DeviceID      string `json:"device_id"`
	Name          string `json:"name"`
	PartitionName string `json:"partition_name"`
	Size          string `json:"size"`
	Format        string `json:"format"`
	Status        string `json:"status"`
}

func (b *partitionBody) normalize() {
	b.Name = firstOf(b.Name, b.PartitionName)
}

type partitionUpdateBody struct {
	Name          *string `json:"name"`
	PartitionName *string `json:"partition_name"`
	Status        *string `json:"status"`
}

func (b *partitionUpdateBody) normalize() {
	b.Name = firstSet(b.Name, b.PartitionName)
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstSet[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
