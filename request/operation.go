package request

import (
	"fmt"
	"strings"
)

// Operation is an HCX protocol API operation.
type Operation int

const (
	CoverageEligibilityCheck Operation = iota + 1
	CoverageEligibilityOnCheck
	PreAuthSubmit
	PreAuthOnSubmit
	ClaimSubmit
	ClaimOnSubmit
	PaymentNoticeRequest
	PaymentNoticeOnRequest
	CommunicationRequest
	CommunicationOnRequest
	PredeterminationSubmit
	PredeterminationOnSubmit
	HCXStatus
	HCXOnStatus
)

var operations = map[Operation]struct {
	name string
	path string
}{
	CoverageEligibilityCheck:   {"COVERAGE_ELIGIBILITY_CHECK", "/coverageeligibility/check"},
	CoverageEligibilityOnCheck: {"COVERAGE_ELIGIBILITY_ON_CHECK", "/coverageeligibility/on_check"},
	PreAuthSubmit:              {"PRE_AUTH_SUBMIT", "/preauth/submit"},
	PreAuthOnSubmit:            {"PRE_AUTH_ON_SUBMIT", "/preauth/on_submit"},
	ClaimSubmit:                {"CLAIM_SUBMIT", "/claim/submit"},
	ClaimOnSubmit:              {"CLAIM_ON_SUBMIT", "/claim/on_submit"},
	PaymentNoticeRequest:       {"PAYMENT_NOTICE_REQUEST", "/paymentnotice/request"},
	PaymentNoticeOnRequest:     {"PAYMENT_NOTICE_ON_REQUEST", "/paymentnotice/on_request"},
	CommunicationRequest:       {"COMMUNICATION_REQUEST", "/communication/request"},
	CommunicationOnRequest:     {"COMMUNICATION_ON_REQUEST", "/communication/on_request"},
	PredeterminationSubmit:     {"PREDETERMINATION_SUBMIT", "/predetermination/submit"},
	PredeterminationOnSubmit:   {"PREDETERMINATION_ON_SUBMIT", "/predetermination/on_submit"},
	HCXStatus:                  {"HCX_STATUS", "/hcx/status"},
	HCXOnStatus:                {"HCX_ON_STATUS", "/hcx/on_status"},
}

// Path is the API path of the operation, relative to the protocol base path.
func (o Operation) Path() string {
	return operations[o].path
}

func (o Operation) String() string {
	if info, ok := operations[o]; ok {
		return info.name
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	_, ok := operations[o]
	return ok
}

// IsResponse reports whether o answers another participant's request.
func (o Operation) IsResponse() bool {
	return strings.Contains(o.Path(), "/on_")
}

// ParseOperation accepts an operation name or API path.
func ParseOperation(s string) (Operation, error) {
	for op, info := range operations {
		if strings.EqualFold(s, info.name) || s == info.path {
			return op, nil
		}
	}
	return 0, fmt.Errorf("request: unknown operation %q", s)
}
