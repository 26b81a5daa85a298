// Package containers starts throwaway database servers and MQTT brokers for
// integration tests using testcontainers-go.
//
// Integration tests start the container once from TestMain and share it:
//
//	var mysqlContainer *containers.MySQLContainer
//
//	func TestMain(m *testing.M) {
//	    var err error
//	    mysqlContainer, err = containers.NewMySQLContainer(context.Background(), nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    _ = mysqlContainer.Terminate(context.Background())
//	    os.Exit(code)
//	}
//
// Every file in this package carries the "integration" build tag, so the
// Docker dependency is only pulled in by:
//
//	go test -tags=integration ./...
package containers
