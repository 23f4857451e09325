package quote

// builtin is the rotation, indexed by day of year.
var builtin = []Quote{
	{Text: "The only way to do great work is to love what you do.", Author: "Steve Jobs"},
	{Text: "In the middle of every difficulty lies opportunity.", Author: "Albert Einstein"},
	{Text: "It does not matter how slowly you go as long as you do not stop.", Author: "Confucius"},
	{Text: "Life is what happens when you're busy making other plans.", Author: "John Lennon"},
	{Text: "The future belongs to those who believe in the beauty of their dreams.", Author: "Eleanor Roosevelt"},
	{Text: "Tell me and I forget. Teach me and I remember. Involve me and I learn.", Author: "Benjamin Franklin"},
	{Text: "When you reach the end of your rope, tie a knot in it and hang on.", Author: "Franklin D. Roosevelt"},
	{Text: "Always remember that you are absolutely unique. Just like everyone else.", Author: "Margaret Mead"},
	{Text: "You miss 100% of the shots you don't take.", Author: "Wayne Gretzky"},
	{Text: "Whether you think you can or you think you can't, you're right.", Author: "Henry Ford"},
	{Text: "I am not a product of my circumstances. I am a product of my decisions.", Author: "Stephen Covey"},
	{Text: "Every child is an artist. The problem is how to remain an artist once we grow up.", Author: "Pablo Picasso"},
	{Text: "You can never cross the ocean until you have the courage to lose sight of the shore.", Author: "Christopher Columbus"},
	{Text: "I've learned that people will forget what you said, people will forget what you did, but people will never forget how you made them feel.", Author: "Maya Angelou"},
	{Text: "Either you run the day, or the day runs you.", Author: "Jim Rohn"},
	{Text: "The two most important days in your life are the day you are born and the day you find out why.", Author: "Mark Twain"},
	{Text: "Whatever the mind of man can conceive and believe, it can achieve.", Author: "Napoleon Hill"},
	{Text: "Strive not to be a success, but rather to be of value.", Author: "Albert Einstein"},
	{Text: "The mind is everything. What you think you become.", Author: "Buddha"},
	{Text: "An unexamined life is not worth living.", Author: "Socrates"},
	{Text: "Spread love everywhere you go. Let no one ever come to you without leaving happier.", Author: "Mother Teresa"},
	{Text: "Life isn't about finding yourself. Life is about creating yourself.", Author: "George Bernard Shaw"},
	{Text: "Nothing is impossible — the word itself says 'I'm possible'!", Author: "Audrey Hepburn"},
	{Text: "The person who says it cannot be done should not interrupt the person who is doing it.", Author: "Chinese Proverb"},
	{Text: "There is only one way to avoid criticism: do nothing, say nothing, and be nothing.", Author: "Aristotle"},
	{Text: "The only person you are destined to become is the person you decide to be.", Author: "Ralph Waldo Emerson"},
	{Text: "Go confidently in the direction of your dreams! Live the life you've imagined.", Author: "Henry David Thoreau"},
	{Text: "Believe you can and you're halfway there.", Author: "Theodore Roosevelt"},
	{Text: "Everything you've ever wanted is on the other side of fear.", Author: "George Addair"},
	{Text: "We can easily forgive a child who is afraid of the dark; the real tragedy of life is when men are afraid of the light.", Author: "Plato"},
	{Text: "Start where you are. Use what you have. Do what you can.", Author: "Arthur Ashe"},
	{Text: "When one door of happiness closes, another opens, but often we look so long at the closed door that we do not see the one that has been opened for us.", Author: "Helen Keller"},
	{Text: "Life is not measured by the number of breaths we take, but by the moments that take our breath away.", Author: "Maya Angelou"},
	{Text: "Definiteness of purpose is the starting point of all achievement.", Author: "W. Clement Stone"},
	{Text: "We become what we think about.", Author: "Earl Nightingale"},
	{Text: "Twenty years from now you will be more disappointed by the things that you didn't do than by the ones you did do.", Author: "Mark Twain"},
	{Text: "Life is 10% what happens to me and 90% of how I react to it.", Author: "Charles Swindoll"},
	{Text: "The most common way people give up their power is by thinking they don't have any.", Author: "Alice Walker"},
	{Text: "The mind is not a vessel to be filled but a fire to be kindled.", Author: "Plutarch"},
	{Text: "You become what you believe.", Author: "Oprah Winfrey"},
	{Text: "The best time to plant a tree was 20 years ago. The second best time is now.", Author: "Chinese Proverb"},
	{Text: "I attribute my success to this: I never gave or took any excuse.", Author: "Florence Nightingale"},
	{Text: "You may be disappointed if you fail, but you are doomed if you don't try.", Author: "Beverly Sills"},
	{Text: "The only true wisdom is in knowing you know nothing.", Author: "Socrates"},
	{Text: "It is during our darkest moments that we must focus to see the light.", Author: "Aristotle Onassis"},
	{Text: "Do not go where the path may lead, go instead where there is no path and leave a trail.", Author: "Ralph Waldo Emerson"},
	{Text: "You will face many defeats in life, but never let yourself be defeated.", Author: "Maya Angelou"},
	{Text: "The greatest glory in living lies not in never falling, but in rising every time we fall.", Author: "Nelson Mandela"},
	{Text: "In the end, it's not the years in your life that count. It's the life in your years.", Author: "Abraham Lincoln"},
	{Text: "Never let the fear of striking out keep you from playing the game.", Author: "Babe Ruth"},
	{Text: "Life is either a daring adventure or nothing at all.", Author: "Helen Keller"},
	{Text: "Many of life's failures are people who did not realize how close they were to success when they gave up.", Author: "Thomas A. Edison"},
	{Text: "You have brains in your head. You have feet in your shoes. You can steer yourself any direction you choose.", Author: "Dr. Seuss"},
	{Text: "If life were predictable it would cease to be life and be without flavor.", Author: "Eleanor Roosevelt"},
	{Text: "If you look at what you have in life, you'll always have more.", Author: "Oprah Winfrey"},
	{Text: "If you set your goals ridiculously high and it's a failure, you will fail above everyone else's success.", Author: "James Cameron"},
	{Text: "You only live once, but if you do it right, once is enough.", Author: "Mae West"},
	{Text: "The secret of getting ahead is getting started.", Author: "Mark Twain"},
	{Text: "It always seems impossible until it's done.", Author: "Nelson Mandela"},
	{Text: "Don't judge each day by the harvest you reap but by the seeds that you plant.", Author: "Robert Louis Stevenson"},
	{Text: "Creativity is intelligence having fun.", Author: "Albert Einstein"},
	{Text: "What lies behind us and what lies before us are tiny matters compared to what lies within us.", Author: "Ralph Waldo Emerson"},
	{Text: "How wonderful it is that nobody need wait a single moment before starting to improve the world.", Author: "Anne Frank"},
	{Text: "You are never too old to set another goal or to dream a new dream.", Author: "C.S. Lewis"},
	{Text: "To handle yourself, use your head; to handle others, use your heart.", Author: "Eleanor Roosevelt"},
	{Text: "Learn as if you will live forever, live as if you will die today.", Author: "Mahatma Gandhi"},
}
