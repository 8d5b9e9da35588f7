// Package repomanager hands out repositories bound to a DBTX so services can
// reuse the same repository code inside and outside transactions.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/stagepass/internal/dbx"
	"github.com/dmitrijs2005/stagepass/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/stagepass/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
