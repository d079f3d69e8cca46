package store

// WithCredentials returns a Store that serves credentials from creds and
// everything else from base. Transactions opened on the result still use the
// base store's credential repository.
func WithCredentials(base Store, creds Credentials) Store {
	return &overlay{Store: base, creds: creds}
}

type overlay struct {
	Store
	creds Credentials
}

func (o *overlay) Credentials() Credentials { return o.creds }
