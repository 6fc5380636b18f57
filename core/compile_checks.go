package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ WebhookService = (*Service)(nil)
	_ DeliveryLocker = (*MemoryDeliveryLocker)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
