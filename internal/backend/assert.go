package backend

import (
	"github.com/eugenenazirov/config-service/internal/dynamostore"
	"github.com/eugenenazirov/config-service/internal/filestore"
)

var (
	_ Backend = (*filestore.Store)(nil)
	_ Backend = (*dynamostore.Store)(nil)
	_ Backend = (*instrumented)(nil)
	_ Source  = (*Selector)(nil)
)
