package amqp

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/brocaar/chirpstack-telemetry-ingester/internal/test"
)

type ChannelPoolTestSuite struct {
	suite.Suite

	url string
}

func (ts *ChannelPoolTestSuite) SetupSuite() {
	conf := test.GetConfig()
	ts.url = conf.Sink.AMQP.URL
}

func (ts *ChannelPoolTestSuite) TestNew() {
	assert := require.New(ts.T())

	p, err := newPool(10, ts.url)
	assert.NoError(err)
	defer p.close()
	assert.Len(p.chans, 10)
}

func (ts *ChannelPoolTestSuite) TestGet() {
	assert := require.New(ts.T())

	p, err := newPool(10, ts.url)
	assert.NoError(err)
	defer p.close()

	_, err = p.get()
	assert.NoError(err)
	assert.Len(p.chans, 9)

	for i := 0; i < 9; i++ {
		_, err = p.get()
		assert.NoError(err)
	}
	assert.Len(p.chans, 0)

	// an empty pool creates a new channel
	_, err = p.get()
	assert.NoError(err)
}

func (ts *ChannelPoolTestSuite) TestPut() {
	assert := require.New(ts.T())

	p, err := newPool(10, ts.url)
	assert.NoError(err)
	defer p.close()

	ch, err := p.get()
	assert.NoError(err)
	assert.Len(p.chans, 9)

	assert.NoError(ch.close())
	assert.Len(p.chans, 10)
}

func (ts *ChannelPoolTestSuite) TestMarkUnusable() {
	assert := require.New(ts.T())

	p, err := newPool(10, ts.url)
	assert.NoError(err)
	defer p.close()

	ch, err := p.get()
	assert.NoError(err)
	ch.markUnusable()
	assert.NoError(ch.close())
	assert.Len(p.chans, 9)
}

func (ts *ChannelPoolTestSuite) TestClose() {
	assert := require.New(ts.T())

	p, err := newPool(10, ts.url)
	assert.NoError(err)
	assert.NoError(p.close())

	_, err = p.get()
	assert.Equal(errClosed, err)
}

func TestChannelPool(t *testing.T) {
	suite.Run(t, new(ChannelPoolTestSuite))
}
