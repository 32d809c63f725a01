package di

import (
	"github.com/aristath/beam/internal/clientdata"
	"github.com/aristath/beam/internal/modules/historical"
	"github.com/aristath/beam/internal/modules/snapshots"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) {
	container.ClientData = clientdata.NewRepository(container.ClientDataDB.Conn())
	container.Snapshots = snapshots.NewRepository(container.PortfolioDB.Conn(), log)
	container.Historical = historical.NewRepository(container.PortfolioDB.Conn(), log)
}
