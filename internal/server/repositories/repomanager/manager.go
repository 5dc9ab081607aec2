package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cashkeeper/internal/dbx"
	"github.com/dmitrijs2005/cashkeeper/internal/server/repositories/oauthtokens"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	OAuthTokens(db dbx.DBTX) oauthtokens.Repository
}
