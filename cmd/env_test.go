package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/oracle"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.LoadFile("")
	require.NoError(t, err)
	c.Store.SQLitePath = filepath.Join(t.TempDir(), "outreach.db")
	c.Instantly.Key = "inst-key"
	c.Anthropic.Key = "sk-test"

	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
	return c
}

func TestInitOracle_None(t *testing.T) {
	c := testConfig(t)
	c.Oracle.Provider = "none"

	o, rdb, err := initOracle(context.Background(), c)
	require.NoError(t, err)
	assert.Nil(t, o)
	assert.Nil(t, rdb)
}

func TestInitOracle_Unsupported(t *testing.T) {
	c := testConfig(t)
	c.Oracle.Provider = "oracle-9000"

	_, _, err := initOracle(context.Background(), c)
	assert.ErrorContains(t, err, "unsupported oracle provider")
}

func TestInitOracle_Anthropic(t *testing.T) {
	c := testConfig(t)

	o, rdb, err := initOracle(context.Background(), c)
	require.NoError(t, err)
	assert.Nil(t, rdb)
	assert.IsType(t, &oracle.Anthropic{}, o)
}

func TestInitOracle_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c := testConfig(t)
	c.Redis.URL = "redis://" + mr.Addr()

	o, rdb, err := initOracle(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, rdb)
	defer rdb.Close() //nolint:errcheck
	assert.IsType(t, &oracle.Cached{}, o)
}

func TestInitOracle_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	c := testConfig(t)
	c.Redis.URL = "redis://" + mr.Addr()
	mr.Close()

	o, rdb, err := initOracle(context.Background(), c)
	require.NoError(t, err)
	assert.Nil(t, rdb)
	assert.IsType(t, &oracle.Anthropic{}, o)
}

func TestInitOracle_BadRedisURL(t *testing.T) {
	c := testConfig(t)
	c.Redis.URL = "ftp://nope"

	_, _, err := initOracle(context.Background(), c)
	assert.ErrorContains(t, err, "parse redis url")
}

func TestProvisionConfig(t *testing.T) {
	c := testConfig(t)
	c.Provision.Accounts = []string{"sam@acme.io"}
	c.Provision.SenderName = "Sam"

	pc := provisionConfig(c)
	assert.Equal(t, 3, pc.DefaultLeadCount)
	assert.Equal(t, "Sam", pc.SenderName)
	assert.Equal(t, "Etc/GMT+12", pc.Timezone)
	assert.Equal(t, []string{"sam@acme.io"}, pc.Accounts)
	assert.Equal(t, model.ResourceList, pc.Target)
	assert.Equal(t, 10*time.Second, pc.Poll.Interval)
	assert.Equal(t, 180*time.Second, pc.Poll.MaxWait)
	assert.Equal(t, 3, pc.Poll.MaxConsecutiveFailures)
	assert.Equal(t, 3*time.Second, pc.JobPollInterval)
	assert.Equal(t, 40, pc.JobPollAttempts)

	bo := bindOptions(c)
	assert.Equal(t, 3*time.Second, bo.JobPollInterval)
	assert.Equal(t, 40, bo.JobPollAttempts)
}

func TestFollowupParams(t *testing.T) {
	testConfig(t)
	p := followupParams()
	assert.Equal(t, 30*time.Second, p.Interval)
	assert.Equal(t, 10, p.MaxChecks)
}

func TestInitStore(t *testing.T) {
	c := testConfig(t)

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
	require.NoError(t, st.Close())

	c.Store.Driver = "mongo"
	_, err = initStore(context.Background())
	assert.ErrorContains(t, err, "unsupported store driver")
}

func TestInitEnv(t *testing.T) {
	testConfig(t)

	env, err := initEnv(context.Background(), "manage")
	require.NoError(t, err)
	defer env.Close()
	assert.NotNil(t, env.Manager)
	assert.Nil(t, env.Provisioner)
	assert.Nil(t, env.Oracle)

	prov, err := initEnv(context.Background(), "provision")
	require.NoError(t, err)
	defer prov.Close()
	assert.NotNil(t, prov.Provisioner)
	assert.NotNil(t, prov.Oracle)
}

func TestInitEnv_MissingKey(t *testing.T) {
	c := testConfig(t)
	c.Instantly.Key = ""

	_, err := initEnv(context.Background(), "manage")
	assert.ErrorContains(t, err, "instantly.key is required")
}

func TestFindPending(t *testing.T) {
	testConfig(t)
	ctx := context.Background()

	st, err := initStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	require.NoError(t, st.SaveCampaign(ctx, &model.Campaign{ID: "camp-1", Name: "Acme"}))
	require.NoError(t, st.SaveEnrichmentJob(ctx, &model.EnrichmentJob{
		ID: "enr-1", CampaignID: "camp-1", ResourceID: "list-1", ResourceType: model.ResourceList,
		Requested: 3, State: model.EnrichmentTimedOut,
	}))

	job, err := findPending(ctx, st, "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "list-1", job.ResourceID)

	_, err = findPending(ctx, st, "enr-404")
	assert.ErrorContains(t, err, "no pending lead search enr-404")
}
