package roster

// Doctor is a read-only roster entry selectable as a primary physician.
type Doctor struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Specialty string `db:"specialty" json:"specialty"`
	Image     string `db:"image" json:"image"`
}

// DisplayName is the name as shown to patients, e.g. "Dr. John Green".
func (d Doctor) DisplayName() string {
	return "Dr. " + d.Name
}

// DefaultDoctors is the roster used when no store is configured. It matches
// the rows seeded by the doctor roster migration.
var DefaultDoctors = []Doctor{
	{ID: "john-green", Name: "John Green", Specialty: "Family Medicine", Image: "/assets/images/dr-green.png"},
	{ID: "leila-cameron", Name: "Leila Cameron", Specialty: "Cardiology", Image: "/assets/images/dr-cameron.png"},
	{ID: "peter-lee", Name: "Peter Lee", Specialty: "Pediatrics", Image: "/assets/images/dr-lee.png"},
	{ID: "david-livingston", Name: "David Livingston", Specialty: "Dermatology", Image: "/assets/images/dr-livingston.png"},
	{ID: "evan-peter", Name: "Evan Peter", Specialty: "Orthopedics", Image: "/assets/images/dr-peter.png"},
	{ID: "jane-powell", Name: "Jane Powell", Specialty: "Neurology", Image: "/assets/images/dr-powell.png"},
	{ID: "alex-ramirez", Name: "Alex Ramirez", Specialty: "Internal Medicine", Image: "/assets/images/dr-ramirez.png"},
	{ID: "alyana-cruz", Name: "Alyana Cruz", Specialty: "Obstetrics and Gynecology", Image: "/assets/images/dr-cruz.png"},
	{ID: "hardik-sharma", Name: "Hardik Sharma", Specialty: "Psychiatry", Image: "/assets/images/dr-sharma.png"},
}
