package intake

import "github.com/carepulse/carepulse/internal/platform/validation"

var userMessages = validation.Messages{
	"name":      "Name must be at least 2 characters",
	"name.max":  "Name must be at most 50 characters",
	"email":     "Invalid email address",
	"email.max": "Email must be at most 255 characters",
	"phone":     "Invalid phone number",
}

var patientMessages = merge(userMessages, validation.Messages{
	"birthDate":                 "Invalid birth date",
	"birthDate.notfuture":       "Birth date cannot be in the future",
	"gender":                    "Gender must be Male, Female or Other",
	"address":                   "Address must be at least 5 characters",
	"address.max":               "Address must be at most 500 characters",
	"occupation":                "Occupation must be at least 2 characters",
	"occupation.max":            "Occupation must be at most 500 characters",
	"emergencyContactName":      "Contact name must be at least 2 characters",
	"emergencyContactName.max":  "Contact name must be at most 50 characters",
	"emergencyContactNumber":    "Invalid phone number",
	"primaryPhysician":          "Select at least one doctor",
	"primaryPhysician.doctor":   "Select a doctor from the roster",
	"insuranceProvider":         "Insurance name must be at least 2 characters",
	"insuranceProvider.max":     "Insurance name must be at most 50 characters",
	"insurancePolicyNumber":     "Policy number must be at least 2 characters",
	"insurancePolicyNumber.max": "Policy number must be at most 50 characters",
	"identificationType":        "Select a valid identification type",
	"identificationNumber":      "Identification number must be at most 64 characters",
	"treatmentConsent":          "You must consent to treatment in order to proceed",
	"disclosureConsent":         "You must consent to disclosure in order to proceed",
	"privacyConsent":            "You must consent to privacy in order to proceed",
})

var appointmentMessages = validation.Messages{
	"userId":                  "Invalid user id",
	"patientId":               "Invalid patient id",
	"primaryPhysician":        "Select at least one doctor",
	"primaryPhysician.doctor": "Select a doctor from the roster",
	"schedule":                "Invalid appointment date",
	"schedule.notpast":        "Appointment must be scheduled in the future",
	"reason":                  "Reason must be at least 2 characters",
	"reason.max":              "Reason must be at most 500 characters",
	"status":                  "Status must be pending or scheduled",
	"cancellationReason":      "Cancellation reason must be at least 2 characters",
	"cancellationReason.max":  "Cancellation reason must be at most 500 characters",
}

func merge(sets ...validation.Messages) validation.Messages {
	out := validation.Messages{}
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}
