package clinic

// Clinic is one clinic the signed-in user may operate within.
type Clinic struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// UnnamedClinic is the sentinel display name for clinic documents that carry
// no recognizable name field.
const UnnamedClinic = "Unnamed Clinic"

// nameFields is the display-name resolution order. The localized name wins;
// the remaining candidates reflect field names that accumulated across
// backend revisions.
var nameFields = []string{"location_ar", "name", "clinic_name", "title", "location"}

// displayName resolves a clinic document's display name, first populated
// candidate wins.
func displayName(data map[string]interface{}) string {
	for _, field := range nameFields {
		if v, ok := data[field].(string); ok && v != "" {
			return v
		}
	}
	return UnnamedClinic
}
