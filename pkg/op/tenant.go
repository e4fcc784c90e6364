package op

// Tenant identifies one issuer inside the multi-tenant server. Every
// repository call and every handler operation is scoped by it; two tenants
// never observe each other's grants, requests or tokens.
type Tenant struct {
	ID     string
	Name   string
	Domain string
}

func (t Tenant) Issuer() string {
	return "https://" + t.Domain
}

func (t Tenant) Exists() bool {
	return t.ID != ""
}
