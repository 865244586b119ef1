package handlers

import "github.com/alfmel/rsmtpd-go/internal/rsmtpd"

// module is the constructor-table key prefix used for every handler in
// this package, matching the "module::class" convention
// rsmtpd.HandlerRegistry expects (spec.md §5).
const module = "internal/handlers"

// Constructors returns the full constructor table for this package,
// ready to be passed to rsmtpd.NewHandlerRegistry. A deployment's chain
// configuration references entries here by class name, e.g.
// {module: "internal/handlers", class: "GreetingHandler"}.
func Constructors() map[string]rsmtpd.Constructor {
	return map[string]rsmtpd.Constructor{
		key("GreetingHandler"):              rsmtpd.Constructor(NewGreetingHandler),
		key("HelloHandler"):                 rsmtpd.Constructor(NewHelloHandler),
		key("MailHandler"):                  rsmtpd.Constructor(NewMailHandler),
		key("RecipientHandler"):             rsmtpd.Constructor(NewRecipientHandler),
		key("StartTLSHandler"):              rsmtpd.Constructor(NewStartTLSHandler),
		key("DomainValidatorHandler"):       rsmtpd.Constructor(NewDomainValidatorHandler),
		key("SPFValidatorHandler"):          rsmtpd.Constructor(NewSPFValidatorHandler),
		key("DataHandler"):                  rsmtpd.Constructor(NewDataHandler),
		key("SpoolDataHandler"):             rsmtpd.Constructor(NewSpoolDataHandler),
		key("ExternalContentFilterHandler"): rsmtpd.Constructor(NewExternalContentFilterHandler),
		key("TransactionLogHandler"):        rsmtpd.Constructor(NewTransactionLogHandler),
		key("PostDataResetHandler"):         rsmtpd.Constructor(NewPostDataResetHandler),
		key("ResetHandler"):                 rsmtpd.Constructor(NewResetHandler),
		key("QuitHandler"):                  rsmtpd.Constructor(NewQuitHandler),
		key("RejectAllHandler"):             rsmtpd.Constructor(NewRejectAllHandler),
		key("ProxyHandler"):                 rsmtpd.Constructor(NewProxyHandler),
	}
}

func key(class string) string {
	return module + "::" + class
}
