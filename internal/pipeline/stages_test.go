package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"primecheck/internal/bigint"
	"primecheck/internal/primality"
	"primecheck/internal/primality/mocks"
)

// =============================================================================
// Stage sequencing suite
// =============================================================================
// The probabilistic stages are replaced with mocks so the orchestration rules
// (order, short circuits, fast path, cancellation) are checked on their own.

type StageSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	mr     *mocks.MockTester
	lucas  *mocks.MockTester
	engine *Engine
}

func TestStageSuite(t *testing.T) {
	suite.Run(t, new(StageSuite))
}

func (s *StageSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mr = mocks.NewMockTester(s.ctrl)
	s.lucas = mocks.NewMockTester(s.ctrl)
	s.engine = NewEngine(DefaultSettings(), WithTesters(s.mr, s.lucas))
}

func (s *StageSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *StageSuite) TestBothStagesPass() {
	gomock.InOrder(
		s.mr.EXPECT().Test(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, n bigint.Nat) (primality.Verdict, error) {
				s.Equal("961748941", n.String())
				return primality.ProbablePrime, nil
			}),
		s.lucas.EXPECT().Test(gomock.Any(), gomock.Any()).Return(primality.ProbablePrime, nil),
	)

	out, err := s.engine.Check(context.Background(), "961748941")
	s.Require().NoError(err)
	s.Equal(primality.Prime, out.Verdict)
}

func (s *StageSuite) TestMillerRabinCompositeSkipsLucas() {
	s.mr.EXPECT().Test(gomock.Any(), gomock.Any()).Return(primality.Composite, nil)

	out, err := s.engine.Check(context.Background(), "961748941")
	s.Require().NoError(err)
	s.Equal(primality.Composite, out.Verdict)
	s.Equal([]Stage{StageParse, StageTrivial, StageMillerRabin}, stagesOf(out))
}

func (s *StageSuite) TestLucasComposite() {
	s.mr.EXPECT().Test(gomock.Any(), gomock.Any()).Return(primality.ProbablePrime, nil)
	s.lucas.EXPECT().Test(gomock.Any(), gomock.Any()).Return(primality.Composite, nil)

	out, err := s.engine.Check(context.Background(), "961748941")
	s.Require().NoError(err)
	s.Equal("Result: Not prime", out.Message())
}

func (s *StageSuite) TestTrivialAndFastPathNeverReachTesters() {
	for _, in := range []string{"0", "1", "2", "997", "1000", "1009", "65521", "961*961"} {
		out, err := s.engine.Check(context.Background(), in)
		s.Require().NoError(err, in)
		s.Len(out.Stages, 2, in)
	}
}

func (s *StageSuite) TestParseErrorNeverReachesTesters() {
	out, err := s.engine.Check(context.Background(), "2 ** 3")
	s.Require().NoError(err)
	s.Require().NotNil(out.ParseErr)
	s.Equal("Parse error: Unexpected character '*'", out.Message())
}

func (s *StageSuite) TestCancelledInsideStage() {
	ctx, cancel := context.WithCancel(context.Background())
	s.mr.EXPECT().Test(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ bigint.Nat) (primality.Verdict, error) {
			cancel()
			return 0, ctx.Err()
		})

	_, err := s.engine.Check(ctx, "961748941")
	s.ErrorIs(err, ErrCancelled)
	s.ErrorIs(err, context.Canceled)
}

func (s *StageSuite) TestCancelledBetweenStages() {
	ctx, cancel := context.WithCancel(context.Background())
	s.mr.EXPECT().Test(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, bigint.Nat) (primality.Verdict, error) {
			cancel()
			return primality.ProbablePrime, nil
		})

	_, err := s.engine.Check(ctx, "961748941")
	s.ErrorIs(err, ErrCancelled)
}
